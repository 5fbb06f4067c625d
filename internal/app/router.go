package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/foundry-erp/foundry-erp/internal/bom"
	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/observability"
	"github.com/foundry-erp/foundry-erp/internal/planning"
	"github.com/foundry-erp/foundry-erp/internal/procurement"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductHandler     *products.Handler
	LedgerHandler      *ledger.Handler
	BOMHandler         *bom.Handler
	ProcurementHandler *procurement.Handler
	PlanningHandler    *planning.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Foundry defaults.
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

	r.Route("/api/v1", func(api chi.Router) {
		if params.ProductHandler != nil {
			api.Route("/products", params.ProductHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/stock", params.LedgerHandler.MountRoutes)
		}
		if params.BOMHandler != nil {
			api.Route("/boms", params.BOMHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/purchase-orders", params.ProcurementHandler.MountRoutes)
		}
		if params.PlanningHandler != nil {
			api.Route("/planning", params.PlanningHandler.MountRoutes)
		}
	})

	return r
}
