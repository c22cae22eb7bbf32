package auth

import (
	"net/http"

	"github.com/odyssey-erp/landhub/internal/shared"
)

// SessionContext is everything the authenticator is told about the caller. The session
// transport fills it in; nothing else is consulted.
type SessionContext struct {
	UserID     string
	RemoteAddr string
}

// SessionContextFromRequest builds a SessionContext from the request session and address.
func SessionContextFromRequest(r *http.Request) SessionContext {
	sc := SessionContext{RemoteAddr: shared.ClientIP(r)}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sc.UserID = sess.User()
	}
	return sc
}
