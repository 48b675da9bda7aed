package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

type capture struct {
	key     []byte
	value   []byte
	headers []kafka.Header
}

func (c *capture) Publish(key, value []byte, headers ...kafka.Header) {
	c.key, c.value, c.headers = key, value, headers
}

func TestOrderCreatedEnvelope(t *testing.T) {
	created := &capture{}
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	ev := &Events{Created: created, Service: "checkout-api", Now: func() time.Time { return at }}

	o := orders.Order{ID: 12, UserID: "u1", TotalCents: 487_000, PaymentIntentID: "pi_abc"}
	lines := []orders.OrderLine{orders.NewLine("GOLD1OZ", 2, 243_500)}
	ev.OrderCreated(context.Background(), o, lines)

	assert.Equal(t, []byte("12"), created.key)
	require.Len(t, created.headers, 2)
	assert.Equal(t, orders.EventOrderCreated, string(created.headers[0].Value))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(created.value, &env))
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "12", env.CorrelationID)
	assert.True(t, at.Equal(env.OccurredAt))
	assert.NotEmpty(t, env.EventID)

	p, err := UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(487_000), p.TotalCents)
	require.Len(t, p.Lines, 1)
	assert.Equal(t, int64(2), p.Lines[0].Qty)
}

func TestStatusChangedEnvelope(t *testing.T) {
	changed := &capture{}
	ev := &Events{StatusChanged: changed, Service: "checkout-api"}

	ev.OrderStatusChanged(context.Background(), orders.Order{ID: 3, PaymentIntentID: "pi_x"},
		orders.StatusAuthorized, orders.StatusCaptured, orders.PaymentCaptured)

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(changed.value, &env))
	p, err := UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAuthorized, p.From)
	assert.Equal(t, orders.StatusCaptured, p.To)
	assert.Equal(t, orders.PaymentCaptured, p.Event)
}

func TestNilEventsIsNoop(t *testing.T) {
	var ev *Events
	assert.NotPanics(t, func() {
		ev.OrderCreated(context.Background(), orders.Order{ID: 1}, nil)
		ev.OrderStatusChanged(context.Background(), orders.Order{ID: 1}, "", orders.StatusAuthorized, orders.PaymentAuthorized)
	})
}

func TestUnwrapPayloadRejectsGarbage(t *testing.T) {
	_, err := UnwrapPayload[orders.OrderCreatedPayload](json.RawMessage(`[1,2`))
	assert.Error(t, err)
}
