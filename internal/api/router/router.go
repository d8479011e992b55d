package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/brickline/realty-leads/internal/http/middleware"
	"github.com/brickline/realty-leads/internal/leads"
	"github.com/brickline/realty-leads/internal/observability/metrics"
	"github.com/brickline/realty-leads/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// IntakeLimiter guards the public intake endpoint. Nil disables limiting.
	IntakeLimiter httpmiddleware.Limiter
	Metrics       *metrics.LeadMetrics

	// HealthCheck reports backing store reachability (optional).
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthCheck))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.LeadsHandler != nil {
			intake := public
			if cfg.IntakeLimiter != nil {
				intake = public.With(httpmiddleware.RateLimit(cfg.IntakeLimiter, cfg.Logger, cfg.Metrics))
			}
			intake.Post("/leads", cfg.LeadsHandler.Create)
		}
	})

	// Admin routes are only mounted when a signing secret is configured.
	if cfg.AdminAuthSecret != "" && cfg.LeadsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/leads", func(lr chi.Router) {
				h := cfg.LeadsHandler
				lr.Get("/", h.List)
				lr.Get("/report", h.Report)
				lr.Post("/bulk-update", h.BulkUpdate)
				lr.Route("/{leadID}", func(one chi.Router) {
					one.Get("/", h.Get)
					one.Patch("/", h.Update)
					one.Delete("/", h.Delete)
					one.Put("/status", h.ChangeStatus)
					one.Post("/notes", h.AppendNote)
				})
			})
		})
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := map[string]string{"status": "ok"}, http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status = map[string]string{"status": "degraded", "error": err.Error()}
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
