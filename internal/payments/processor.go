// Package payments authenticates payment-provider callbacks and advances
// order status.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

const useCaseWebhook = "payments.webhook"

var tracer = otel.Tracer("github.com/ariefcatur/go-bullion-checkout/internal/payments")

type Store interface {
	OrderByPaymentIntent(ctx context.Context, paymentIntentID string) (orders.Order, error)
	ApplyTransition(ctx context.Context, orderID int64, t orders.Transition) (orders.Status, bool, error)
}

type StatusCache interface {
	Set(ctx context.Context, orderID int64, status orders.Status)
}

type Publisher interface {
	OrderStatusChanged(ctx context.Context, o orders.Order, from, to orders.Status, event string)
}

type Processor struct {
	Verifier Verifier
	Store    Store
	Cache    StatusCache
	Events   Publisher
	Metrics  *metrics.Metrics
}

type event struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Event           string `json:"event"`
}

type Result struct {
	OrderID int64
	Event   string
	Applied bool
	From    orders.Status
	To      orders.Status
}

// Handle verifies the body before anything else is read. Once the signature
// and the intent check out it succeeds whether or not the status moved.
func (p *Processor) Handle(ctx context.Context, body []byte, signature string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "UC.PaymentWebhook", trace.WithAttributes(
		attribute.String("use_case", useCaseWebhook),
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
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
		p.Metrics.ObserveUseCase(useCaseWebhook, outcome, start)

		fields := []zap.Field{
			zap.String("use_case", useCaseWebhook),
			zap.String("outcome", outcome),
			zap.String("status", statusText),
			zap.Float64("latency_seconds", time.Since(start).Seconds()),
		}
		if res.OrderID != 0 {
			fields = append(fields,
				zap.Int64("order_id", res.OrderID),
				zap.String("event", res.Event),
				zap.Bool("applied", res.Applied),
			)
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if errors.Is(err, orders.ErrInvalidSignature) {
			log.Warn("use_case_done", fields...)
			return
		}
		log.Info("use_case_done", fields...)
	}()

	if !p.Verifier.Verify(body, signature) {
		statusText = "INVALID_SIGNATURE"
		return Result{}, orders.ErrInvalidSignature
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		statusText = "VALIDATION_ERROR"
		return Result{}, orders.Validation("webhook body is not valid json")
	}
	span.SetAttributes(attribute.String("payment.event", ev.Event))

	if ev.PaymentIntentID == "" {
		statusText = "UNKNOWN_INTENT"
		return Result{}, orders.ErrUnknownIntent
	}
	o, err := p.Store.OrderByPaymentIntent(ctx, ev.PaymentIntentID)
	if errors.Is(err, orders.ErrNotFound) {
		statusText = "UNKNOWN_INTENT"
		return Result{}, orders.ErrUnknownIntent
	}
	if err != nil {
		statusText = "ORDER_LOOKUP_FAILED"
		return Result{}, fmt.Errorf("load order by intent: %w", err)
	}
	res = Result{OrderID: o.ID, Event: ev.Event}

	t, ok := orders.TransitionFor(ev.Event)
	if !ok {
		statusText = "IGNORED_EVENT"
		return res, nil
	}

	prev, applied, err := p.Store.ApplyTransition(ctx, o.ID, t)
	if err != nil {
		statusText = "TRANSITION_FAILED"
		return Result{}, fmt.Errorf("apply %s: %w", ev.Event, err)
	}
	if !applied {
		statusText = "NOOP"
		return res, nil
	}

	res.Applied, res.From, res.To = true, prev, t.To
	if p.Cache != nil {
		p.Cache.Set(ctx, o.ID, t.To)
	}
	if p.Events != nil && prev != t.To {
		p.Events.OrderStatusChanged(ctx, o, prev, t.To, ev.Event)
	}
	return res, nil
}
