package orders

import "time"

// Row types mirror table columns. Conversions to domain values never fail.

type productRow struct {
	sku          string
	name         string
	metal        string
	weightOz     int64
	premiumCents int64
	active       bool
}

func (r productRow) toProduct() Product {
	return Product{
		SKU:          r.sku,
		Name:         r.name,
		Metal:        r.metal,
		WeightOz:     r.weightOz,
		PremiumCents: r.premiumCents,
		Active:       r.active,
	}
}

type spotRow struct {
	id              int64
	metal           string
	pricePerOzCents int64
	asOf            time.Time
}

func (r spotRow) toSpot() SpotPrice {
	return SpotPrice{
		ID:              r.id,
		Metal:           r.metal,
		PricePerOzCents: r.pricePerOzCents,
		AsOf:            r.asOf.UTC(),
	}
}

type quoteRow struct {
	id             int64
	userID         string
	sku            string
	qty            int64
	unitPriceCents int64
	expiresAt      time.Time
	basisSpotCents int64
	basisVersion   int64
	toleranceBps   int64
}

func (r quoteRow) toQuote() Quote {
	return Quote{
		ID:             r.id,
		UserID:         r.userID,
		SKU:            r.sku,
		Qty:            r.qty,
		UnitPriceCents: r.unitPriceCents,
		ExpiresAt:      r.expiresAt.UTC(),
		BasisSpotCents: r.basisSpotCents,
		BasisVersion:   r.basisVersion,
		ToleranceBps:   r.toleranceBps,
	}
}

type orderRow struct {
	id              int64
	userID          string
	totalCents      int64
	status          string
	paymentIntentID string
	createdAt       time.Time
}

func (r orderRow) toOrder() Order {
	return Order{
		ID:              r.id,
		UserID:          r.userID,
		TotalCents:      r.totalCents,
		Status:          Status(r.status),
		PaymentIntentID: r.paymentIntentID,
		CreatedAt:       r.createdAt.UTC(),
	}
}

type lineRow struct {
	orderID        int64
	sku            string
	qty            int64
	unitPriceCents int64
	subtotalCents  int64
}

func (r lineRow) toLine() OrderLine {
	return OrderLine{
		OrderID:        r.orderID,
		SKU:            r.sku,
		Qty:            r.qty,
		UnitPriceCents: r.unitPriceCents,
		SubtotalCents:  r.subtotalCents,
	}
}

type idempotencyRow struct {
	key       string
	purpose   string
	orderID   int64
	createdAt time.Time
}

func (r idempotencyRow) toKey() IdempotencyKey {
	return IdempotencyKey{
		Key:       r.key,
		Purpose:   r.purpose,
		OrderID:   r.orderID,
		CreatedAt: r.createdAt.UTC(),
	}
}
