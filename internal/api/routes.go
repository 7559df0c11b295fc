package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nipun22325/secret-sharing/config"
	"github.com/nipun22325/secret-sharing/internal/secrets"
)

func SetupRouter(m *secrets.Manager, cfg *config.Config) *chi.Mux {
	h := NewHandler(m, cfg)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health and observability
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(JSONOnly)

		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			retrieveLimiter := NewRateLimiter(cfg.RateLimit.RetrievePerMin, time.Minute)

			r.Use(apiLimiter.Middleware)

			r.Route("/secrets", func(r chi.Router) {
				r.Post("/", h.CreateSecret)
				r.With(retrieveLimiter.Middleware).Post("/{id}", h.RetrieveSecret)
				r.Get("/{id}/info", h.GetInfo)
			})
		} else {
			r.Route("/secrets", func(r chi.Router) {
				r.Post("/", h.CreateSecret)
				r.Post("/{id}", h.RetrieveSecret)
				r.Get("/{id}/info", h.GetInfo)
			})
		}

		r.Get("/stats", h.GetStats)
		r.Delete("/admin/cleanup", h.Cleanup)
	})

	return r
}
