package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type LinePayload struct {
	SKU            string `json:"sku"`
	Qty            int64  `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type OrderCreatedPayload struct {
	OrderID         int64         `json:"order_id"`
	UserID          string        `json:"user_id"`
	PaymentIntentID string        `json:"payment_intent_id"`
	TotalCents      int64         `json:"total_cents"`
	Lines           []LinePayload `json:"lines"`
}

type OrderStatusChangedPayload struct {
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	From            Status `json:"from"`
	To              Status `json:"to"`
	Event           string `json:"event"`
}

func ToLinePayloads(lines []OrderLine) []LinePayload {
	out := make([]LinePayload, 0, len(lines))
	for _, l := range lines {
		out = append(out, LinePayload{
			SKU:            l.SKU,
			Qty:            l.Qty,
			UnitPriceCents: l.UnitPriceCents,
			SubtotalCents:  l.SubtotalCents,
		})
	}
	return out
}
