package memstore

import (
	"time"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

// SeedDemo loads a small catalog and one spot row per metal for STORE=memory.
func (s *Store) SeedDemo(now time.Time) {
	for _, p := range []orders.Product{
		{SKU: "GOLD1OZ", Name: "Gold Eagle 1 oz", Metal: "gold", WeightOz: 1, PremiumCents: 8_500, Active: true},
		{SKU: "GOLD10OZ", Name: "Gold Bar 10 oz", Metal: "gold", WeightOz: 10, PremiumCents: 45_000, Active: true},
		{SKU: "SILV10OZ", Name: "Silver Bar 10 oz", Metal: "silver", WeightOz: 10, PremiumCents: 450, Active: true},
		{SKU: "SILV100OZ", Name: "Silver Bar 100 oz", Metal: "silver", WeightOz: 100, PremiumCents: 3_000, Active: true},
	} {
		s.PutProduct(p)
	}
	s.AppendSpot("gold", 235_000, now)
	s.AppendSpot("silver", 2_840, now)
}
