package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

// Publisher is the interface Events needs from a Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

// Events turns order changes into v1 envelopes.
type Events struct {
	Created       Publisher
	StatusChanged Publisher
	Service       string
	Now           func() time.Time
}

func (e *Events) envelope(ctx context.Context, eventType string, orderID int64, payload any) orders.Envelope {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      e.Service,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		env.TraceID = sc.TraceID().String()
	}
	return env
}

func headers(eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
}

func (e *Events) OrderCreated(ctx context.Context, o orders.Order, lines []orders.OrderLine) {
	if e == nil || e.Created == nil {
		return
	}
	env := e.envelope(ctx, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		PaymentIntentID: o.PaymentIntentID,
		TotalCents:      o.TotalCents,
		Lines:           orders.ToLinePayloads(lines),
	})
	e.Created.Publish(orders.PartitionKey(o.ID), MustMarshal(env), headers(orders.EventOrderCreated)...)
}

func (e *Events) OrderStatusChanged(ctx context.Context, o orders.Order, from orders.Status, to orders.Status, event string) {
	if e == nil || e.StatusChanged == nil {
		return
	}
	env := e.envelope(ctx, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID:         o.ID,
		PaymentIntentID: o.PaymentIntentID,
		From:            from,
		To:              to,
		Event:           event,
	})
	e.StatusChanged.Publish(orders.PartitionKey(o.ID), MustMarshal(env), headers(orders.EventOrderStatusChanged)...)
}
