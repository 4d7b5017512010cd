package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/linkchecker-service/internal/delivery/http/handler"
	"github.com/user/linkchecker-service/internal/delivery/http/middleware"
	"github.com/user/linkchecker-service/pkg/metrics"
	"go.uber.org/zap"
)

// Options carries what the router needs besides the handler.
type Options struct {
	Authorizer *middleware.GroupAuthorizer
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
	Timeout    time.Duration
}

func New(h *handler.Handler, opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(chimw.Timeout(opts.Timeout))

	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/linkchecker", func(r chi.Router) {
		r.Get("/report", h.HandleGetReport)
		r.Get("/report/download", h.HandleDownloadReport)
		r.Get("/report/stats", h.HandleGetStats)
		r.Get("/report/pending", h.HandlePending)
		r.Get("/resource-exists", h.HandleResourceExists)
		r.Post("/resource-exists", h.HandleResourceExists)
		r.Post("/fix-link", h.HandleFixLink)
		r.Get("/jobs/latest", h.HandleLatestJob)
		r.Get("/jobs/{id}", h.HandleGetJob)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(opts.Authorizer, opts.Logger))
			r.Get("/generate", h.HandleGenerate)
			r.Post("/replace-by-pattern", h.HandleReplaceByPattern)
			r.Delete("/report", h.HandleDeleteReport)
		})
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	return r
}
