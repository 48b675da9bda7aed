package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bullion-checkout/internal/metrics"
)

// HandlerTimeout bounds a single request. Shutdown should wait longer.
const HandlerTimeout = 15 * time.Second

func NewRouter(log *zap.Logger, m *metrics.Metrics) *chi.Mux {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(requestLogger(log), accessLog(m), middleware.Recoverer)
	r.Use(middleware.Timeout(HandlerTimeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
