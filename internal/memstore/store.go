// Package memstore keeps the checkout tables in process memory. It enforces
// the same uniqueness rules as the Postgres schema and is used for local runs
// (STORE=memory) and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

type idemKey struct{ key, purpose string }

type Store struct {
	mu sync.RWMutex

	products map[string]orders.Product
	spots    []orders.SpotPrice
	quotes   map[int64]orders.Quote
	orders   map[int64]orders.Order
	lines    map[int64][]orders.OrderLine
	intents  map[string]int64
	keys     map[idemKey]orders.IdempotencyKey

	nextSpot, nextQuote, nextOrder int64
	now                            func() time.Time
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products: make(map[string]orders.Product),
		quotes:   make(map[int64]orders.Quote),
		orders:   make(map[int64]orders.Order),
		lines:    make(map[int64][]orders.OrderLine),
		intents:  make(map[string]int64),
		keys:     make(map[idemKey]orders.IdempotencyKey),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutProduct inserts or replaces catalog data.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.SKU] = p
}

// DeleteProduct removes a sku from the catalog.
func (s *Store) DeleteProduct(sku string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, sku)
}

// AppendSpot records a new spot row and returns it with its version id.
func (s *Store) AppendSpot(metal string, pricePerOzCents int64, asOf time.Time) orders.SpotPrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSpot++
	sp := orders.SpotPrice{ID: s.nextSpot, Metal: metal, PricePerOzCents: pricePerOzCents, AsOf: asOf.UTC()}
	s.spots = append(s.spots, sp)
	return sp
}

// ExpireQuote forces a quote's expiry.
func (s *Store) ExpireQuote(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return orders.ErrNotFound
	}
	q.ExpiresAt = at.UTC()
	s.quotes[id] = q
	return nil
}

// CountOrders reports how many orders exist.
func (s *Store) CountOrders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) ProductBySKU(_ context.Context, sku string) (orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[sku]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	return p, nil
}

func (s *Store) LatestSpot(_ context.Context, metal string) (orders.SpotPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  orders.SpotPrice
		found bool
	)
	for _, sp := range s.spots {
		if sp.Metal != metal {
			continue
		}
		if !found || sp.AsOf.After(best.AsOf) || (sp.AsOf.Equal(best.AsOf) && sp.ID > best.ID) {
			best, found = sp, true
		}
	}
	if !found {
		return orders.SpotPrice{}, orders.ErrNotFound
	}
	return best, nil
}

func (s *Store) CreateQuote(_ context.Context, q orders.Quote) (orders.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuote++
	q.ID = s.nextQuote
	s.quotes[q.ID] = q
	return q, nil
}

func (s *Store) QuoteByID(_ context.Context, id int64) (orders.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return orders.Quote{}, orders.ErrNotFound
	}
	return q, nil
}

func (s *Store) IdempotencyKey(_ context.Context, key, purpose string) (orders.IdempotencyKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[idemKey{key, purpose}]
	if !ok {
		return orders.IdempotencyKey{}, orders.ErrNotFound
	}
	return k, nil
}

func (s *Store) CreateOrder(_ context.Context, in orders.NewOrder) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// constraints are checked before any write so a failure leaves nothing behind
	if _, exists := s.keys[idemKey{in.IdempotencyKey, in.Purpose}]; exists {
		return orders.Order{}, orders.ErrIdempotencyConflict
	}
	if _, exists := s.intents[in.PaymentIntentID]; exists {
		return orders.Order{}, fmt.Errorf("insert order: duplicate payment_intent_id %q", in.PaymentIntentID)
	}
	for _, l := range in.Lines {
		if l.SubtotalCents != l.UnitPriceCents*l.Qty {
			return orders.Order{}, fmt.Errorf("insert order line: subtotal mismatch for %s", l.SKU)
		}
	}

	now := s.now()
	s.nextOrder++
	o := orders.Order{
		ID:              s.nextOrder,
		UserID:          in.UserID,
		TotalCents:      orders.TotalOf(in.Lines),
		Status:          orders.StatusPending,
		PaymentIntentID: in.PaymentIntentID,
		CreatedAt:       now,
	}
	lines := make([]orders.OrderLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		l.OrderID = o.ID
		lines = append(lines, l)
	}

	s.orders[o.ID] = o
	s.lines[o.ID] = lines
	s.intents[o.PaymentIntentID] = o.ID
	s.keys[idemKey{in.IdempotencyKey, in.Purpose}] = orders.IdempotencyKey{
		Key: in.IdempotencyKey, Purpose: in.Purpose, OrderID: o.ID, CreatedAt: now,
	}
	return o, nil
}

func (s *Store) OrderByID(_ context.Context, id int64) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *Store) OrderByPaymentIntent(_ context.Context, paymentIntentID string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.intents[paymentIntentID]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return s.orders[id], nil
}

func (s *Store) OrderLines(_ context.Context, orderID int64) ([]orders.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]orders.OrderLine(nil), s.lines[orderID]...), nil
}

func (s *Store) ApplyTransition(_ context.Context, orderID int64, t orders.Transition) (orders.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || !t.Allows(o.Status) {
		return "", false, nil
	}
	prev := o.Status
	o.Status = t.To
	s.orders[orderID] = o
	return prev, true, nil
}
