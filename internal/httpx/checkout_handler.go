package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bullion-checkout/internal/checkout"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
	"github.com/ariefcatur/go-bullion-checkout/internal/payments"
	"github.com/ariefcatur/go-bullion-checkout/internal/pricing"
)

const maxWebhookBody = 1 << 20

type QuoteIssuer interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (orders.Quote, error)
}

type CheckoutStarter interface {
	BeginCheckout(ctx context.Context, quoteID int64, key string) (checkout.Result, error)
}

type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte, signature string) (payments.Result, error)
}

type CheckoutHandler struct {
	Quotes              QuoteIssuer
	Checkout            CheckoutStarter
	Webhooks            WebhookProcessor
	DefaultToleranceBps int64
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/quote", h.quote)
	r.Post("/checkout", h.checkout)
	r.Post("/webhooks/payments", h.webhook)
}

type quoteReq struct {
	SKU          string `json:"sku"`
	Qty          int64  `json:"qty"`
	ToleranceBps *int64 `json:"tolerance_bps"`
}

type quoteResp struct {
	QuoteID        int64  `json:"quote_id"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	QuoteExpiresAt string `json:"quote_expires_at"`
}

type checkoutReq struct {
	QuoteID        int64  `json:"quote_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type checkoutResp struct {
	Success         bool   `json:"success"`
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return orders.Validation("malformed json body")
	}
	return nil
}

func (h *CheckoutHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	// a client may tighten the configured tolerance, never widen it
	tol := h.DefaultToleranceBps
	if req.ToleranceBps != nil {
		tol = min(*req.ToleranceBps, h.DefaultToleranceBps)
	}

	q, err := h.Quotes.Quote(r.Context(), pricing.QuoteInput{
		UserID:       strings.TrimSpace(r.Header.Get("X-User-ID")),
		SKU:          req.SKU,
		Qty:          req.Qty,
		ToleranceBps: tol,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResp{
		QuoteID:        q.ID,
		UnitPriceCents: q.UnitPriceCents,
		QuoteExpiresAt: q.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.QuoteID <= 0 {
		writeError(w, r, orders.Validation("quote_id is required"))
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	res, err := h.Checkout.BeginCheckout(r.Context(), req.QuoteID, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{Success: true, OrderID: res.OrderID, PaymentIntentID: res.PaymentIntentID})
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, orders.Validation("body too large"))
			return
		}
		writeError(w, r, err)
		return
	}
	if _, err := h.Webhooks.Handle(r.Context(), body, r.Header.Get("X-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
