package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// Middleware resolves the principal for protected routes.
type Middleware struct {
	Authenticator *Authenticator
	Logger        *slog.Logger
	Metrics       rbac.DenialRecorder
}

// RequirePrincipal rejects requests without a resolvable principal and blocks restricted
// principals from every non-safe method. The principal is placed in the request context.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.Authenticator.ResolvePrincipal(r.Context(), SessionContextFromRequest(r))
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("resolve principal", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if !isSafeMethod(r.Method) {
			if err := RequireMutable(p); err != nil {
				if m.Metrics != nil {
					m.Metrics.Denied(string(shared.ReasonRestrictedAccount))
				}
				if m.Logger != nil {
					m.Logger.Warn("restricted account attempted mutation",
						slog.Int64("principal_id", p.ID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
				}
				httpx.RespondError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), p)))
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
