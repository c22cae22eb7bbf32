package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/odyssey-erp/landhub/internal/audit/http"
	"github.com/odyssey-erp/landhub/internal/auth"
	"github.com/odyssey-erp/landhub/internal/listings"
	"github.com/odyssey-erp/landhub/internal/observability"
	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
	"github.com/odyssey-erp/landhub/internal/upload"
	"github.com/odyssey-erp/landhub/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthMiddleware  auth.Middleware
	RBACMiddleware  rbac.Middleware
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	ListingsHandler *listings.Handler
	UploadHandler   *upload.Handler
	AuditHandler    *audithttp.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with landhub defaults. Every route except health,
// metrics and the auth flow requires a resolved principal.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.AuthHandler.MountProfile(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequirePrincipal)

		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.ListingsHandler != nil {
			r.Route("/lands", params.ListingsHandler.MountLandRoutes)
			r.Route("/applications", params.ListingsHandler.MountApplicationRoutes)
		}
		if params.UploadHandler != nil {
			r.Route("/uploads", params.UploadHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r, params.RBACMiddleware)
		}
	})

	return r
}
