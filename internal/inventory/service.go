package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-bullion-checkout/internal/kafka"
	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

type StockStore interface {
	Get(ctx context.Context, sku string) (int64, error)
	Set(ctx context.Context, sku string, qty int64) error
	Decrement(ctx context.Context, sku string, qty int64) (int64, error)
}

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Service is the mock fulfillment side: it serves availability and burns
// stock down as orders are created.
type Service struct {
	Stock StockStore
	Dedup Deduper
	Log   *zap.Logger
}

func (s *Service) Register(r chi.Router) {
	r.Get("/mock-fulfillment/availability/{sku}", s.getAvailability)
	r.Post("/mock-fulfillment/availability", s.setAvailability)
}

type availabilityReq struct {
	SKU          string `json:"sku"`
	AvailableQty *int64 `json:"available_qty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) getAvailability(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	n, err := s.Stock.Get(r.Context(), sku)
	if err != nil {
		logging.FromContext(r.Context()).Error("read stock", zap.String("sku", sku), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stock unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"available_qty": n})
}

func (s *Service) setAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid json"})
		return
	}
	if req.SKU == "" || req.AvailableQty == nil || *req.AvailableQty < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "sku and non-negative available_qty required"})
		return
	}
	if err := s.Stock.Set(r.Context(), req.SKU, *req.AvailableQty); err != nil {
		logging.FromContext(r.Context()).Error("write stock", zap.String("sku", req.SKU), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stock unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleOrderCreated is installed as the order.created consumer handler.
// A nil return commits the offset.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) (err error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message, committing is the only way past it
		s.Log.Warn("drop undecodable envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	first, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		s.Log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}
	defer func() {
		if err != nil {
			_ = s.Dedup.Release(ctx, env.EventID)
		}
	}()

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	for _, l := range p.Lines {
		left, derr := s.Stock.Decrement(ctx, l.SKU, l.Qty)
		if derr != nil {
			return fmt.Errorf("decrement stock %s: %w", l.SKU, derr)
		}
		s.Log.Info("stock decremented",
			zap.Int64("order_id", p.OrderID),
			zap.String("sku", l.SKU),
			zap.Int64("qty", l.Qty),
			zap.Int64("left", left),
		)
	}
	return nil
}
