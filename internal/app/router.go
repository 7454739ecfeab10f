package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rentledger/rentledger/internal/billing"
	"github.com/rentledger/rentledger/internal/observability"
	"github.com/rentledger/rentledger/internal/pdc"
	"github.com/rentledger/rentledger/internal/property"
	"github.com/rentledger/rentledger/jobs"
	"github.com/rentledger/rentledger/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	PropertyHandler *property.Handler
	BillingHandler  *billing.Handler
	PDCHandler      *pdc.Handler
	JobHandler      *jobs.Handler
	ReportHandler   *report.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with rentledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.PropertyHandler != nil {
			r.Route("/properties", params.PropertyHandler.MountRoutes)
		}
		if params.BillingHandler != nil {
			r.Route("/billings", params.BillingHandler.MountRoutes)
		}
		if params.PDCHandler != nil {
			r.Route("/pdcs", params.PDCHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.ReportHandler != nil {
			r.Route("/reports", params.ReportHandler.MountRoutes)
		}
	})

	return r
}
