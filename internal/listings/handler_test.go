package listings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landhub/internal/audit"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	lands  map[int64]*Land
	apps   map[int64]*Application
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID: 100,
		lands: map[int64]*Land{
			1: {ID: 1, OwnerID: 10, Title: "Ridge lot"},
			2: {ID: 2, OwnerID: 11, Title: "Valley lot"},
		},
		apps: map[int64]*Application{
			5: {ID: 5, LandID: 1, ApplicantID: 30, Status: ApplicationPending},
			6: {ID: 6, LandID: 2, ApplicantID: 31, Status: ApplicationApproved},
		},
	}
}

func (m *memoryRepo) LandOwner(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	land, ok := m.lands[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return land.OwnerID, nil
}

func (m *memoryRepo) CreateLand(ctx context.Context, ownerID int64, input LandInput) (*Land, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	land := &Land{ID: m.nextID, OwnerID: ownerID, Title: input.Title, Location: input.Location, AreaSqm: input.AreaSqm, Price: input.Price, CreatedAt: time.Now()}
	m.lands[land.ID] = land
	return land, nil
}

func (m *memoryRepo) DeleteLand(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lands[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.lands, id)
	return nil
}

func (m *memoryRepo) ApplicationOwner(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return app.ApplicantID, nil
}

func (m *memoryRepo) DecideApplication(ctx context.Context, id int64, status ApplicationStatus, reviewerID int64) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if app.Status != ApplicationPending {
		return nil, ErrNotPending
	}
	app.Status = status
	app.ReviewedBy = &reviewerID
	cp := *app
	return &cp, nil
}

type auditSpy struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditSpy) Record(ctx context.Context, p rbac.Principal, action string, target *audit.Target, details any, ip string) error {
	if !p.Role.IsPrivileged() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action+":"+target.ID)
	return nil
}

type denialSpy struct {
	reasons []string
}

func (d *denialSpy) Denied(reason string) {
	d.reasons = append(d.reasons, reason)
}

type testServer struct {
	handler http.Handler
	repo    *memoryRepo
	audit   *auditSpy
	denials *denialSpy
}

func newTestServer(p rbac.Principal) *testServer {
	repo := newMemoryRepo()
	spy := &auditSpy{}
	denials := &denialSpy{}
	h := NewHandler(nil, NewService(repo, spy), rbac.Middleware{Metrics: denials})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/lands", h.MountLandRoutes)
	r.Route("/applications", h.MountApplicationRoutes)
	return &testServer{handler: r, repo: repo, audit: spy, denials: denials}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminDeletesOnlyOwnLand(t *testing.T) {
	srv := newTestServer(rbac.Principal{ID: 10, Role: rbac.RoleAdmin})

	rec := srv.do(http.MethodDelete, "/lands/2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, srv.repo.lands, int64(2))
	assert.Equal(t, []string{string(shared.ReasonOwnershipViolation)}, srv.denials.reasons)

	rec = srv.do(http.MethodDelete, "/lands/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, srv.repo.lands, int64(1))
	assert.Equal(t, []string{"land.delete:1"}, srv.audit.actions)
}

func TestSuperAdminDeletesAnyLand(t *testing.T) {
	srv := newTestServer(rbac.Principal{ID: 1, Role: rbac.RoleSuperAdmin})

	rec := srv.do(http.MethodDelete, "/lands/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"land.delete:2"}, srv.audit.actions)
}

func TestMissingLandLooksForbidden(t *testing.T) {
	srv := newTestServer(rbac.Principal{ID: 1, Role: rbac.RoleSuperAdmin})

	missing := srv.do(http.MethodDelete, "/lands/404", "")
	denied := newTestServer(rbac.Principal{ID: 10, Role: rbac.RoleAdmin}).do(http.MethodDelete, "/lands/2", "")
	assert.Equal(t, http.StatusForbidden, missing.Code)
	assert.Equal(t, denied.Body.String(), missing.Body.String())
}

func TestCreateLand(t *testing.T) {
	body := `{"title":"Orchard","location":"North ridge","area_sqm":1250.5,"price":90000}`

	admin := newTestServer(rbac.Principal{ID: 10, Role: rbac.RoleAdmin})
	rec := admin.do(http.MethodPost, "/lands", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var env struct {
		Data Land `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, int64(10), env.Data.OwnerID)
	assert.Len(t, admin.audit.actions, 1)

	user := newTestServer(rbac.Principal{ID: 30, Role: rbac.RoleUser})
	rec = user.do(http.MethodPost, "/lands", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, user.audit.actions)

	rec = admin.do(http.MethodPost, "/lands", `{"title":"","location":"x","area_sqm":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title")
}

func TestDecideApplication(t *testing.T) {
	srv := newTestServer(rbac.Principal{ID: 10, Role: rbac.RoleAdmin})

	rec := srv.do(http.MethodPost, "/applications/5/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ApplicationApproved, srv.repo.apps[5].Status)
	assert.Equal(t, []string{"application.approve:5"}, srv.audit.actions)

	rec = srv.do(http.MethodPost, "/applications/6/reject", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	user := newTestServer(rbac.Principal{ID: 30, Role: rbac.RoleUser})
	rec = user.do(http.MethodPost, "/applications/5/approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ApplicationPending, user.repo.apps[5].Status)
}
