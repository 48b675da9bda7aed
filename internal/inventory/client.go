package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

const (
	peerFulfillment      = "fulfillment"
	endpointAvailability = "availability"
)

// Client asks the fulfillment service how much of a sku is on hand.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

type availabilityResp struct {
	AvailableQty *int64 `json:"available_qty"`
}

// AvailableQuantity returns ErrInventoryUnavailable on timeout, transport
// failure, a non-2xx status, or a body without available_qty.
func (c *Client) AvailableQuantity(ctx context.Context, sku string) (_ int64, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.ObserveExternal(peerFulfillment, endpointAvailability, outcome, start)
	}()

	u := c.baseURL + "/mock-fulfillment/availability/" + url.PathEscape(sku)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build availability request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.FromContext(ctx).Warn("availability call failed", zap.String("sku", sku), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", orders.ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: availability returned status %d", orders.ErrInventoryUnavailable, resp.StatusCode)
	}

	var out availabilityResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode availability: %v", orders.ErrInventoryUnavailable, err)
	}
	if out.AvailableQty == nil {
		return 0, fmt.Errorf("%w: availability body has no available_qty", orders.ErrInventoryUnavailable)
	}
	return *out.AvailableQty, nil
}
