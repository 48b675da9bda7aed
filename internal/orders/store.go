package orders

import "context"

// Lookups return ErrNotFound when the record does not exist.

type Catalog interface {
	ProductBySKU(ctx context.Context, sku string) (Product, error)
}

type SpotFeed interface {
	// LatestSpot returns the spot row with the newest as_of for metal.
	LatestSpot(ctx context.Context, metal string) (SpotPrice, error)
}

type QuoteStore interface {
	CreateQuote(ctx context.Context, q Quote) (Quote, error)
	QuoteByID(ctx context.Context, id int64) (Quote, error)
}

type OrderStore interface {
	IdempotencyKey(ctx context.Context, key, purpose string) (IdempotencyKey, error)

	// CreateOrder writes the order, its lines and the idempotency key in one
	// transaction. A (key, purpose) uniqueness violation returns
	// ErrIdempotencyConflict and nothing is written.
	CreateOrder(ctx context.Context, in NewOrder) (Order, error)

	OrderByID(ctx context.Context, id int64) (Order, error)
	OrderByPaymentIntent(ctx context.Context, paymentIntentID string) (Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)

	// ApplyTransition performs t as a single conditional update keyed on the
	// order id. It returns the status held before the update and whether the
	// update matched.
	ApplyTransition(ctx context.Context, orderID int64, t Transition) (prev Status, applied bool, err error)
}

// Store is everything the checkout core reads and writes.
type Store interface {
	Catalog
	SpotFeed
	QuoteStore
	OrderStore
}
