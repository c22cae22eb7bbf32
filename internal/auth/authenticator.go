package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
	"github.com/odyssey-erp/landhub/internal/users"
)

// Authenticator resolves the principal behind a session. It holds no cache: every call reads
// the identity store so role changes and restrictions apply on the next request.
type Authenticator struct {
	store  users.IdentityStore
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(store users.IdentityStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{store: store, logger: logger}
}

// ResolvePrincipal returns the current principal for sc. It fails with
// shared.ErrUnauthenticated when there is no session or no matching user, and with
// shared.ErrStoreUnavailable when the identity store cannot answer.
func (a *Authenticator) ResolvePrincipal(ctx context.Context, sc SessionContext) (rbac.Principal, error) {
	raw := strings.TrimSpace(sc.UserID)
	if raw == "" {
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	if a == nil || a.store == nil {
		return rbac.Principal{}, fmt.Errorf("%w: identity store not configured", shared.ErrStoreUnavailable)
	}

	user, err := a.store.FetchUserByID(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return rbac.Principal{}, shared.ErrUnauthenticated
	case errors.Is(err, shared.ErrStoreUnavailable):
		return rbac.Principal{}, err
	case err != nil:
		return rbac.Principal{}, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	case user == nil:
		return rbac.Principal{}, shared.ErrUnauthenticated
	}

	p := user.Principal()
	if !p.Role.Valid() {
		a.logger.Warn("session user has no valid role", slog.Int64("user_id", id))
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	return p, nil
}

// RequireMutable rejects restricted principals for state-changing actions.
func RequireMutable(p rbac.Principal) error {
	if p.IsRestricted {
		return shared.Forbidden(shared.ReasonRestrictedAccount)
	}
	return nil
}
