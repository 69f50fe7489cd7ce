package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tillpoint/tillpoint/internal/audit"
	"github.com/tillpoint/tillpoint/internal/auth"
	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/customers"
	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/purchasing"
	"github.com/tillpoint/tillpoint/internal/sales"
	"github.com/tillpoint/tillpoint/internal/settings"
	"github.com/tillpoint/tillpoint/internal/stocktake"
	"github.com/tillpoint/tillpoint/internal/suppliers"
	"github.com/tillpoint/tillpoint/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthService       *auth.Service
	AuthHandler       *auth.Handler
	CatalogHandler    *catalog.Handler
	LedgerHandler     *ledger.Handler
	SalesHandler      *sales.Handler
	PurchasingHandler *purchasing.Handler
	StockTakeHandler  *stocktake.Handler
	CustomersHandler  *customers.Handler
	SuppliersHandler  *suppliers.Handler
	SettingsHandler   *settings.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
}

// NewRouter constructs the chi.Router. Everything under /api except login
// requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		params.AuthHandler.MountRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(auth.Middleware(params.AuthService))
			params.CatalogHandler.MountRoutes(protected)
			params.SalesHandler.MountRoutes(protected)
			params.CustomersHandler.MountRoutes(protected)
			params.SuppliersHandler.MountRoutes(protected)

			protected.Group(func(managed chi.Router) {
				managed.Use(auth.RequireRole("admin", "manager"))
				params.LedgerHandler.MountRoutes(managed)
				params.PurchasingHandler.MountRoutes(managed)
				params.StockTakeHandler.MountRoutes(managed)
				params.SettingsHandler.MountRoutes(managed)
			})

			protected.Group(func(admin chi.Router) {
				admin.Use(auth.RequireRole("admin"))
				params.UsersHandler.MountRoutes(admin)
				params.AuditHandler.MountRoutes(admin)
			})
		})
	})

	return r
}
