package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// DenialRecorder counts authorization denials.
type DenialRecorder interface {
	Denied(reason string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers. It expects the principal to
// have been placed in the request context by the authentication middleware.
type Middleware struct {
	Logger  *slog.Logger
	Metrics DenialRecorder
}

// RequireRole gates a route group on the principal's role.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if err := RequireRole(p, roles...); err != nil {
				m.denied(r, p, err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check authorizes req for the request principal. On denial it writes the response and
// returns false; handlers must return immediately in that case.
func (m Middleware) Check(w http.ResponseWriter, r *http.Request, req Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return Principal{}, false
	}
	if err := Authorize(p, req).Err(); err != nil {
		m.denied(r, p, err)
		httpx.RespondError(w, err)
		return p, false
	}
	return p, true
}

// Respond writes err for the request principal, counting it first when it is a denial.
func (m Middleware) Respond(w http.ResponseWriter, r *http.Request, p Principal, err error) {
	if errors.Is(err, shared.ErrForbidden) {
		m.denied(r, p, err)
	}
	httpx.RespondError(w, err)
}

func (m Middleware) denied(r *http.Request, p Principal, err error) {
	reason, _ := shared.DenyReasonOf(err)
	if m.Metrics != nil {
		m.Metrics.Denied(string(reason))
	}
	if m.Logger != nil {
		m.Logger.Warn("authorization denied",
			slog.Int64("principal_id", p.ID),
			slog.String("role", string(p.Role)),
			slog.String("reason", string(reason)),
			slog.String("path", r.URL.Path),
		)
	}
}
