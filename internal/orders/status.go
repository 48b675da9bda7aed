package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
)

// Payment provider event names delivered to the webhook.
const (
	PaymentAuthorized = "payment_authorized"
	PaymentCaptured   = "payment_captured"
)

// Transition is a conditional status update. An empty From applies regardless
// of the current status.
type Transition struct {
	From Status
	To   Status
}

// payment_authorized is deliberately unguarded: a replay after capture moves the
// order back to authorized. See DESIGN.md.
var byEvent = map[string]Transition{
	PaymentAuthorized: {To: StatusAuthorized},
	PaymentCaptured:   {From: StatusAuthorized, To: StatusCaptured},
}

// TransitionFor returns the transition a payment event requests, if any.
func TransitionFor(event string) (Transition, bool) {
	t, ok := byEvent[event]
	return t, ok
}

// Allows reports whether t applies to an order currently in status cur.
func (t Transition) Allows(cur Status) bool {
	return t.From == "" || t.From == cur
}
