// Package checkout turns a quote and an idempotency key into exactly one
// pending order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
	"github.com/ariefcatur/go-bullion-checkout/internal/pricing"
)

const (
	useCaseCheckout = "checkout.begin"

	// MaxKeyLen matches the idempotency_keys.key column.
	MaxKeyLen = 255
)

var tracer = otel.Tracer("github.com/ariefcatur/go-bullion-checkout/internal/checkout")

// InventoryOracle answers how many units of a sku can be fulfilled.
type InventoryOracle interface {
	AvailableQuantity(ctx context.Context, sku string) (int64, error)
}

// Publisher receives freshly committed orders. Failures are the publisher's
// problem; the order is already durable.
type Publisher interface {
	OrderCreated(ctx context.Context, o orders.Order, lines []orders.OrderLine)
}

// StatusCache is primed with the new order's status. Fill must not replace
// an existing entry; a webhook may already have written a later status.
type StatusCache interface {
	Fill(ctx context.Context, orderID int64, status orders.Status)
}

type Service struct {
	Store     orders.Store
	Inventory InventoryOracle
	Events    Publisher
	Cache     StatusCache
	Clock     pricing.Clock
	Metrics   *metrics.Metrics

	// NewIntentID is overridable in tests.
	NewIntentID func() string
}

func NewService(store orders.Store, inv InventoryOracle, events Publisher, clock pricing.Clock, m *metrics.Metrics) *Service {
	if clock == nil {
		clock = pricing.SystemClock()
	}
	return &Service{
		Store:       store,
		Inventory:   inv,
		Events:      events,
		Clock:       clock,
		Metrics:     m,
		NewIntentID: NewPaymentIntentID,
	}
}

// NewPaymentIntentID returns an opaque "pi_" token.
func NewPaymentIntentID() string {
	return "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type Result struct {
	OrderID         int64
	PaymentIntentID string
	Replayed        bool
}

// BeginCheckout revalidates the quote (expiry, then drift), replays a prior
// order bound to key, otherwise checks inventory and commits order, line and
// key atomically.
func (s *Service) BeginCheckout(ctx context.Context, quoteID int64, key string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "UC.BeginCheckout", trace.WithAttributes(
		attribute.String("use_case", useCaseCheckout),
		attribute.Int64("quote.id", quoteID),
	))
	start := time.Now()
	outcome, statusText := "success", "OK"
	log := logging.FromContext(ctx)

	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetAttributes(
				attribute.Int64("order.id", res.OrderID),
				attribute.Bool("checkout.replayed", res.Replayed),
			)
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
		s.Metrics.ObserveUseCase(useCaseCheckout, outcome, start)

		fields := []zap.Field{
			zap.String("use_case", useCaseCheckout),
			zap.String("outcome", outcome),
			zap.String("status", statusText),
			zap.Float64("latency_seconds", time.Since(start).Seconds()),
			zap.Int64("quote_id", quoteID),
		}
		if res.OrderID != 0 {
			fields = append(fields, zap.Int64("order_id", res.OrderID), zap.String("payment_intent_id", res.PaymentIntentID))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Info("use_case_done", fields...)
	}()

	if strings.TrimSpace(key) == "" {
		statusText = "VALIDATION_ERROR"
		return Result{}, orders.Validation("idempotency key is required")
	}
	if len(key) > MaxKeyLen {
		statusText = "VALIDATION_ERROR"
		return Result{}, orders.Validation("idempotency key is too long")
	}

	q, err := s.Store.QuoteByID(ctx, quoteID)
	if errors.Is(err, orders.ErrNotFound) {
		statusText = "QUOTE_NOT_FOUND"
		return Result{}, orders.ErrQuoteNotFound
	}
	if err != nil {
		statusText = "QUOTE_LOOKUP_FAILED"
		return Result{}, fmt.Errorf("load quote: %w", err)
	}

	if q.Expired(s.Clock.Now()) {
		statusText = "REQUOTE_REQUIRED"
		return Result{}, fmt.Errorf("%w: quote expired at %s", orders.ErrRequoteRequired, q.ExpiresAt.Format(time.RFC3339))
	}

	p, err := s.Store.ProductBySKU(ctx, q.SKU)
	if errors.Is(err, orders.ErrNotFound) {
		statusText = "PRODUCT_NOT_FOUND"
		return Result{}, orders.ErrProductNotFound
	}
	if err != nil {
		statusText = "PRODUCT_LOOKUP_FAILED"
		return Result{}, fmt.Errorf("load product: %w", err)
	}

	spot, err := s.Store.LatestSpot(ctx, p.Metal)
	if errors.Is(err, orders.ErrNotFound) {
		statusText = "SPOT_PRICE_UNAVAILABLE"
		return Result{}, orders.ErrSpotPriceUnavailable
	}
	if err != nil {
		statusText = "SPOT_LOOKUP_FAILED"
		return Result{}, fmt.Errorf("load spot: %w", err)
	}

	if pricing.Breached(q.BasisSpotCents, spot.PricePerOzCents, q.ToleranceBps) {
		statusText = "REQUOTE_REQUIRED"
		return Result{}, fmt.Errorf("%w: spot moved %d bps (tolerance %d)",
			orders.ErrRequoteRequired, pricing.DriftBps(q.BasisSpotCents, spot.PricePerOzCents), q.ToleranceBps)
	}

	// Replays stop here: a completed order is never rechecked against stock.
	if prev, found, err := s.replay(ctx, key); err != nil {
		statusText = "IDEMPOTENCY_LOOKUP_FAILED"
		return Result{}, err
	} else if found {
		statusText = "IDEMPOTENT_REPLAY"
		return prev, nil
	}

	avail, err := s.Inventory.AvailableQuantity(ctx, q.SKU)
	if err != nil {
		statusText = "INVENTORY_UNAVAILABLE"
		if errors.Is(err, orders.ErrInventoryUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", orders.ErrInventoryUnavailable, err)
	}
	if avail < q.Qty {
		statusText = "OUT_OF_STOCK"
		return Result{}, fmt.Errorf("%w: %s wants %d, %d available", orders.ErrOutOfStock, q.SKU, q.Qty, avail)
	}

	line := orders.NewLine(q.SKU, q.Qty, q.UnitPriceCents)
	o, err := s.Store.CreateOrder(ctx, orders.NewOrder{
		UserID:          q.UserID,
		PaymentIntentID: s.NewIntentID(),
		Lines:           []orders.OrderLine{line},
		IdempotencyKey:  key,
		Purpose:         orders.PurposeCheckout,
	})
	if errors.Is(err, orders.ErrIdempotencyConflict) {
		// a concurrent request with the same key committed first
		prev, found, rerr := s.replay(ctx, key)
		if rerr != nil || !found {
			statusText = "IDEMPOTENCY_RECOVERY_FAILED"
			return Result{}, fmt.Errorf("recover idempotency conflict: %w", errors.Join(err, rerr))
		}
		statusText = "IDEMPOTENT_REPLAY"
		return prev, nil
	}
	if err != nil {
		statusText = "ORDER_COMMIT_FAILED"
		return Result{}, fmt.Errorf("commit order: %w", err)
	}

	line.OrderID = o.ID
	if s.Cache != nil {
		s.Cache.Fill(ctx, o.ID, o.Status)
	}
	if s.Events != nil {
		s.Events.OrderCreated(ctx, o, []orders.OrderLine{line})
	}
	return Result{OrderID: o.ID, PaymentIntentID: o.PaymentIntentID}, nil
}

func (s *Service) replay(ctx context.Context, key string) (Result, bool, error) {
	k, err := s.Store.IdempotencyKey(ctx, key, orders.PurposeCheckout)
	if errors.Is(err, orders.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("load idempotency key: %w", err)
	}
	o, err := s.Store.OrderByID(ctx, k.OrderID)
	if err != nil {
		return Result{}, false, fmt.Errorf("load replayed order %d: %w", k.OrderID, err)
	}
	return Result{OrderID: o.ID, PaymentIntentID: o.PaymentIntentID, Replayed: true}, true, nil
}
