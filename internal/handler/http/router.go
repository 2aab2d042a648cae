// Package http wires the review API routes and middleware.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomstack/review-service/pkg/health"
	"github.com/ecomstack/review-service/pkg/middleware"
)

// RouterConfig carries the router dependencies.
type RouterConfig struct {
	ReviewHandler *ReviewHandler
	Health        *health.Handler
	Logger        *slog.Logger
	CORS          middleware.CORSConfig
	ServiceName   string
}

// NewRouter builds the chi router with the standard middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/reviews", cfg.ReviewHandler.List)
			r.Post("/reviews", cfg.ReviewHandler.Submit)
			r.Post("/rating/recompute", cfg.ReviewHandler.RecomputeRating)
		})

		r.Route("/reviews/{reviewId}", func(r chi.Router) {
			r.Put("/", cfg.ReviewHandler.Edit)
			r.Delete("/", cfg.ReviewHandler.Delete)
			r.Post("/helpful", cfg.ReviewHandler.MarkHelpful)
			r.Post("/response", cfg.ReviewHandler.Respond)
			r.Post("/moderate", cfg.ReviewHandler.Moderate)
		})
	})

	return r
}
