package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

type OrderReader interface {
	OrderByID(ctx context.Context, id int64) (orders.Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]orders.OrderLine, error)
}

// StatusCache is read-only from the handler's side: Fill must not replace an
// entry a status writer has already set.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (orders.Status, bool)
	Fill(ctx context.Context, orderID int64, status orders.Status)
}

type OrdersHandler struct {
	Orders OrderReader
	Cache  StatusCache
}

type noCache struct{}

func (noCache) Get(context.Context, int64) (orders.Status, bool) { return "", false }
func (noCache) Fill(context.Context, int64, orders.Status)       {}

func (h *OrdersHandler) Register(r chi.Router) {
	if h.Cache == nil {
		h.Cache = noCache{}
	}
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
}

type lineResp struct {
	SKU            string `json:"sku"`
	Qty            int64  `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type orderResp struct {
	OrderID         int64      `json:"order_id"`
	Status          string     `json:"status"`
	TotalCents      int64      `json:"total_cents"`
	PaymentIntentID string     `json:"payment_intent_id"`
	Lines           []lineResp `json:"lines"`
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, orders.Validation("order id must be a positive integer")
	}
	return id, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Orders.OrderByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.Orders.OrderLines(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Cache.Fill(r.Context(), o.ID, o.Status)

	resp := orderResp{
		OrderID:         o.ID,
		Status:          string(o.Status),
		TotalCents:      o.TotalCents,
		PaymentIntentID: o.PaymentIntentID,
		Lines:           make([]lineResp, 0, len(lines)),
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, lineResp{SKU: l.SKU, Qty: l.Qty, UnitPriceCents: l.UnitPriceCents, SubtotalCents: l.SubtotalCents})
	}
	writeJSON(w, http.StatusOK, resp)
}

// getStatus is cache first; a miss reads the order and fills the cache if
// nothing was written meanwhile.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s, ok := h.Cache.Get(r.Context(), id); ok {
		writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": s, "cached": true})
		return
	}
	o, err := h.Orders.OrderByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Cache.Fill(r.Context(), id, o.Status)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": o.Status, "cached": false})
}
