package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/logging"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

type errorKind struct {
	err    error
	status int
	code   string
}

// errorTable maps domain errors to responses. First match wins.
var errorTable = []errorKind{
	{orders.ErrQuoteNotFound, http.StatusNotFound, "QUOTE_NOT_FOUND"},
	{orders.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{orders.ErrSpotPriceUnavailable, http.StatusInternalServerError, "SPOT_PRICE_UNAVAILABLE"},
	{orders.ErrRequoteRequired, http.StatusConflict, "REQUOTE_REQUIRED"},
	{orders.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{orders.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{orders.ErrUnknownIntent, http.StatusBadRequest, "unknown_intent"},
	{orders.ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{orders.ErrInventoryUnavailable, http.StatusServiceUnavailable, "INVENTORY_UNAVAILABLE"},
	{orders.ErrNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
}

func classify(err error) (int, string) {
	for _, k := range errorTable {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError never leaks internal error text; validation messages are the
// only detail returned to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := map[string]string{"error": code}
	switch {
	case errors.Is(err, orders.ErrValidation):
		body["message"] = err.Error()
	case status >= http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, body)
}
