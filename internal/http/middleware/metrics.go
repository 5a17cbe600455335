package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bomilitar/plataforma/internal/metrics"
)

// Metrics registra contadores e latência por rota. Usa o padrão de rota do
// chi (ex.: /api/occurrences/{id}) para manter a cardinalidade baixa.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		metrics.IncInFlight()
		defer metrics.DecInFlight()

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		metrics.ObserveHTTP(r.Method, path, ww.Status(), time.Since(start))
	})
}
