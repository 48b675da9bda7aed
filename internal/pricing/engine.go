package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

const useCaseQuote = "pricing.quote"

var tracer = otel.Tracer("github.com/ariefcatur/go-bullion-checkout/internal/pricing")

type Store interface {
	orders.Catalog
	orders.SpotFeed
	orders.QuoteStore
}

// Engine issues spot-anchored quotes.
type Engine struct {
	Store   Store
	Clock   Clock
	Metrics *metrics.Metrics
}

func NewEngine(store Store, clock Clock, m *metrics.Metrics) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{Store: store, Clock: clock, Metrics: m}
}

type QuoteInput struct {
	UserID       string
	SKU          string
	Qty          int64
	ToleranceBps int64
}

// Quote prices qty units of sku off the latest spot and persists the quote
// with its basis. It has no other side effect.
func (e *Engine) Quote(ctx context.Context, in QuoteInput) (q orders.Quote, err error) {
	ctx, span := tracer.Start(ctx, "UC.Quote", trace.WithAttributes(
		attribute.String("use_case", useCaseQuote),
		attribute.String("quote.sku", in.SKU),
		attribute.Int64("quote.qty", in.Qty),
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
			span.SetAttributes(attribute.Int64("quote.id", q.ID))
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
		e.Metrics.ObserveUseCase(useCaseQuote, outcome, start)

		fields := []zap.Field{
			zap.String("use_case", useCaseQuote),
			zap.String("outcome", outcome),
			zap.String("status", statusText),
			zap.Float64("latency_seconds", time.Since(start).Seconds()),
			zap.String("user_id", in.UserID),
			zap.String("sku", in.SKU),
			zap.Int64("qty", in.Qty),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int64("quote_id", q.ID), zap.Int64("unit_price_cents", q.UnitPriceCents))
		}
		log.Info("use_case_done", fields...)
	}()

	switch {
	case strings.TrimSpace(in.UserID) == "":
		statusText = "VALIDATION_ERROR"
		return orders.Quote{}, orders.Validation("user id is required")
	case strings.TrimSpace(in.SKU) == "":
		statusText = "VALIDATION_ERROR"
		return orders.Quote{}, orders.Validation("sku is required")
	case in.Qty <= 0:
		statusText = "VALIDATION_ERROR"
		return orders.Quote{}, orders.Validation("qty must be a positive integer")
	case in.ToleranceBps < 0:
		statusText = "VALIDATION_ERROR"
		return orders.Quote{}, orders.Validation("tolerance_bps must not be negative")
	}

	p, err := e.Store.ProductBySKU(ctx, in.SKU)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && !p.Active) {
		statusText = "PRODUCT_NOT_FOUND"
		return orders.Quote{}, orders.ErrProductNotFound
	}
	if err != nil {
		statusText = "PRODUCT_LOOKUP_FAILED"
		return orders.Quote{}, fmt.Errorf("load product: %w", err)
	}

	spot, err := e.Store.LatestSpot(ctx, p.Metal)
	if errors.Is(err, orders.ErrNotFound) {
		statusText = "SPOT_PRICE_UNAVAILABLE"
		return orders.Quote{}, orders.ErrSpotPriceUnavailable
	}
	if err != nil {
		statusText = "SPOT_LOOKUP_FAILED"
		return orders.Quote{}, fmt.Errorf("load spot: %w", err)
	}

	q, err = e.Store.CreateQuote(ctx, orders.Quote{
		UserID:         in.UserID,
		SKU:            p.SKU,
		Qty:            in.Qty,
		UnitPriceCents: UnitPrice(spot.PricePerOzCents, p.WeightOz, p.PremiumCents),
		ExpiresAt:      e.Clock.Now().Add(QuoteTTL),
		BasisSpotCents: spot.PricePerOzCents,
		BasisVersion:   spot.ID,
		ToleranceBps:   in.ToleranceBps,
	})
	if err != nil {
		statusText = "QUOTE_PERSIST_FAILED"
		return orders.Quote{}, err
	}
	return q, nil
}
