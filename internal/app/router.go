package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	audithttp "github.com/odyssey-erp/bookkeeping/internal/audit/http"
	"github.com/odyssey-erp/bookkeeping/internal/drafts"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/observability"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	DraftsHandler     *drafts.Handler
	PostingHandler    *posting.Handler
	AllocationHandler *allocation.Handler
	InventoryHandler  *inventory.Handler
	AuditHandler      *audithttp.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router. Everything under /api is tenant scoped.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
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

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireTenant)
		if params.DraftsHandler != nil {
			params.DraftsHandler.MountRoutes(r)
		}
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(r)
		}
		if params.AllocationHandler != nil {
			params.AllocationHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
