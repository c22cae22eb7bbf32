package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/shared"
)

type denials []string

func (d *denials) Denied(reason string) { *d = append(*d, reason) }

func requestAs(p *Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/lands/1", nil)
	if p != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), *p))
	}
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func TestMiddlewareRequireRole(t *testing.T) {
	var recorded denials
	m := Middleware{Metrics: &recorded}
	handler := m.RequireRole(RoleAdmin, RoleSuperAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestAs(&Principal{ID: 10, Role: RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestAs(&Principal{ID: 30, Role: RoleUser}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	env := decode(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, httpx.MsgDenied, env.Message)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestAs(nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Equal(t, denials{string(shared.ReasonInsufficientRole)}, recorded)
}

func TestMiddlewareCheck(t *testing.T) {
	var recorded denials
	m := Middleware{Metrics: &recorded}

	rr := httptest.NewRecorder()
	p, ok := m.Check(rr, requestAs(&Principal{ID: 10, Role: RoleAdmin}), Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(10)})
	assert.True(t, ok)
	assert.Equal(t, int64(10), p.ID)

	rr = httptest.NewRecorder()
	_, ok = m.Check(rr, requestAs(&Principal{ID: 10, Role: RoleAdmin}), Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(11)})
	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, denials{string(shared.ReasonOwnershipViolation)}, recorded)
}

func TestMiddlewareRespondCountsOnlyDenials(t *testing.T) {
	var recorded denials
	m := Middleware{Metrics: &recorded}
	p := Principal{ID: 10, Role: RoleAdmin}

	rr := httptest.NewRecorder()
	m.Respond(rr, requestAs(&p), p, shared.ErrNotFound)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	notFound := decode(t, rr)

	rr = httptest.NewRecorder()
	m.Respond(rr, requestAs(&p), p, shared.Forbidden(shared.ReasonOwnershipViolation))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, notFound, decode(t, rr))

	assert.Equal(t, denials{string(shared.ReasonOwnershipViolation)}, recorded)
}
