package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

func TestClientReadsAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mock-fulfillment/availability/GOLD1OZ", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"available_qty":7}`))
	}))
	defer srv.Close()

	n, err := NewClient(srv.URL+"/", time.Second, nil).AvailableQuantity(context.Background(), "GOLD1OZ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestClientNon2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).AvailableQuantity(context.Background(), "GOLD1OZ")
	assert.ErrorIs(t, err, orders.ErrInventoryUnavailable)
}

func TestClientTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, nil).AvailableQuantity(context.Background(), "GOLD1OZ")
	assert.ErrorIs(t, err, orders.ErrInventoryUnavailable)
}

func TestClientBadBodyIsUnavailable(t *testing.T) {
	for _, body := range []string{`not json`, `{"error":"stock unavailable"}`, `{}`, `{"available_qty":null}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).AvailableQuantity(context.Background(), "GOLD1OZ")
			assert.ErrorIs(t, err, orders.ErrInventoryUnavailable)
		})
	}
}

func TestClientZeroIsOutOfStockNotFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available_qty":0}`))
	}))
	defer srv.Close()

	n, err := NewClient(srv.URL, time.Second, nil).AvailableQuantity(context.Background(), "GOLD1OZ")
	require.NoError(t, err)
	assert.Zero(t, n)
}
