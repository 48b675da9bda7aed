package orders

import "time"

// PurposeCheckout scopes idempotency keys created by checkout.
const PurposeCheckout = "checkout"

// Product is catalog reference data. WeightOz is whole troy ounces.
type Product struct {
	SKU          string
	Name         string
	Metal        string
	WeightOz     int64
	PremiumCents int64
	Active       bool
}

// SpotPrice is one row of the append-only spot history; ID is the basis version.
type SpotPrice struct {
	ID              int64
	Metal           string
	PricePerOzCents int64
	AsOf            time.Time
}

type Quote struct {
	ID             int64
	UserID         string
	SKU            string
	Qty            int64
	UnitPriceCents int64
	ExpiresAt      time.Time
	BasisSpotCents int64
	BasisVersion   int64
	ToleranceBps   int64
}

// Expired reports whether the quote is no longer valid at now.
// The expiry instant itself counts as expired.
func (q Quote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

type Order struct {
	ID              int64
	UserID          string
	TotalCents      int64
	Status          Status
	PaymentIntentID string
	CreatedAt       time.Time
}

type OrderLine struct {
	OrderID        int64
	SKU            string
	Qty            int64
	UnitPriceCents int64
	SubtotalCents  int64
}

type IdempotencyKey struct {
	Key       string
	Purpose   string
	OrderID   int64
	CreatedAt time.Time
}

// NewLine builds a line whose subtotal is unit price times qty.
func NewLine(sku string, qty, unitPriceCents int64) OrderLine {
	return OrderLine{
		SKU:            sku,
		Qty:            qty,
		UnitPriceCents: unitPriceCents,
		SubtotalCents:  unitPriceCents * qty,
	}
}

// TotalOf sums line subtotals.
func TotalOf(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents
	}
	return total
}

// NewOrder is the input for an atomic checkout commit.
type NewOrder struct {
	UserID          string
	PaymentIntentID string
	Lines           []OrderLine
	IdempotencyKey  string
	Purpose         string
}
