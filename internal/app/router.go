package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pantryplan/pantryplan/internal/auth"
	"github.com/pantryplan/pantryplan/internal/observability"
	"github.com/pantryplan/pantryplan/internal/rbac"
	"github.com/pantryplan/pantryplan/internal/recipes"
	"github.com/pantryplan/pantryplan/internal/shared"
	"github.com/pantryplan/pantryplan/internal/tenants"
)

// RouterParams collects everything the HTTP surface needs.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Metrics        *observability.Metrics

	AuthHandler   *auth.Handler
	RBACHandler   *rbac.Handler
	TenantHandler *tenants.Handler
	RecipeHandler *recipes.Handler
}

// NewRouter assembles the chi router with the middleware chain and all
// mounted surfaces.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         p.Logger,
		Config:         p.Config,
		SessionManager: p.SessionManager,
		Metrics:        p.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/auth", p.AuthHandler.MountRoutes)
	r.Route("/roles", p.RBACHandler.MountRoutes)
	p.RBACHandler.MountSelfServiceRoutes(r)
	r.Route("/tenants", func(r chi.Router) {
		p.TenantHandler.MountRoutes(r)
		r.Route("/{tenantID}/recipes", p.RecipeHandler.MountRoutes)
	})

	return r
}
