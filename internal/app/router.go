package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	authzhttp "github.com/authgraph/authgraph/internal/authz/http"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AuthzHandler *authzhttp.Handler
	Guard        *authzhttp.Middleware
	Ops          *OpsHandler
}

// NewRouter constructs the chi.Router. When the config names an admin item,
// the mutation endpoints are guarded by a CheckAccess on it; the query
// surface stays open to any caller the proxy lets through.
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

	r.Route("/v1", func(r chi.Router) {
		params.AuthzHandler.MountReadRoutes(r)
		r.Group(func(r chi.Router) {
			if params.Guard != nil && params.Config != nil && params.Config.AuthzAdminItem != "" {
				r.Use(params.Guard.RequireAccess(params.Config.AuthzAdminItem))
			}
			params.AuthzHandler.MountWriteRoutes(r)
			if params.Ops != nil {
				params.Ops.MountRoutes(r)
			}
		})
	})

	return r
}
