package bootstrap

import (
	"context"
	"net/http"

	"currency-gateway/internal/handlers"
	"currency-gateway/internal/metrics"
	"currency-gateway/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitRoutes(
	ratesHandler *handlers.RatesHandler,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	adminToken string,
	ping func(ctx context.Context) error,
) chi.Router {
	r := chi.NewRouter()
	r.Use(handlers.RequestMetrics(m))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if ping != nil {
			if err := ping(req.Context()); err != nil {
				http.Error(w, "cache unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(handlers.AdminAuth(adminToken))
		r.Post("/ratelimit/reset/{ip}", ratesHandler.ResetLimit)
		r.Post("/ratelimit/unblock/{ip}", ratesHandler.UnblockIP)
	})

	r.Group(func(r chi.Router) {
		r.Use(handlers.RateLimit(limiter, m))
		r.Get("/last/*", ratesHandler.GetSeries)
		r.Get("/hist/*", ratesHandler.GetSeries)
		r.Get("/historical/*", ratesHandler.GetSeries)
		r.Get("/*", ratesHandler.GetRates)
	})

	return r
}
