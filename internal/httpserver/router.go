package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/handlers"
	"github.com/r-ms/detect-spam/internal/metrics"
	"github.com/r-ms/detect-spam/internal/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Handlers struct {
	Spam   *handlers.SpamHandler
	Health *handlers.HealthHandler
	Cache  *handlers.CacheHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, h Handlers) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer()) // panic recovery
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout)) // request timeout
	}
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	// routes
	r.Post("/check_spam", h.Spam.CheckSpam)
	r.Get("/health", h.Health.Health)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.Cache.Stats)
		r.Delete("/clear", h.Cache.Clear)
	})

	r.Handle("/metrics", metrics.Handler())
}
