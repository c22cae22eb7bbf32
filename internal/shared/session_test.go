package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "landhub_session", "session-secret", time.Hour, true), mr
}

// roundTrip commits sess and returns the cookie the client would send back.
func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	for _, c := range rr.Result().Cookies() {
		if c.Name == sm.CookieName() {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func loadWith(t *testing.T, sm *SessionManager, value string) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: value})
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := loadWith(t, sm, "")
	sess.SetUser("42")
	sess.Set("k", "v")
	cookie := roundTrip(t, sm, sess)

	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.True(t, strings.HasPrefix(cookie.Value, sess.ID+"."))
	assert.True(t, mr.Exists("session:"+sess.ID))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:"+sess.ID).Seconds(), 1)

	loaded := loadWith(t, sm, cookie.Value)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "v", loaded.Get("k"))
}

func TestSessionRejectsForgedCookies(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := loadWith(t, sm, "")
	sess.SetUser("42")
	cookie := roundTrip(t, sm, sess)

	for name, value := range map[string]string{
		"bare id":        sess.ID,
		"bad signature":  sess.ID + ".AAAA",
		"other secret":   NewSessionManager(nil, "landhub_session", "other", time.Hour, false).sign(sess.ID),
		"unknown signed": sm.sign("attacker-chosen-id"),
	} {
		t.Run(name, func(t *testing.T) {
			loaded := loadWith(t, sm, value)
			assert.NotEqual(t, sess.ID, loaded.ID)
			assert.NotEqual(t, "attacker-chosen-id", loaded.ID)
			assert.Empty(t, loaded.User())
		})
	}
	assert.False(t, mr.Exists("session:attacker-chosen-id"))
	assert.Equal(t, "42", loadWith(t, sm, cookie.Value).User())
}

func TestSessionRenewDropsOldKey(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := loadWith(t, sm, "")
	cookie := roundTrip(t, sm, sess)
	oldID := sess.ID

	sess = loadWith(t, sm, cookie.Value)
	sm.Renew(sess)
	sess.SetUser("7")
	renewed := roundTrip(t, sm, sess)

	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("session:"+oldID))
	assert.True(t, mr.Exists("session:"+sess.ID))
	assert.Empty(t, loadWith(t, sm, cookie.Value).User())
	assert.Equal(t, "7", loadWith(t, sm, renewed.Value).User())
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := loadWith(t, sm, "")
	cookie := roundTrip(t, sm, sess)

	sess = loadWith(t, sm, cookie.Value)
	sm.Destroy(sess)
	cleared := roundTrip(t, sm, sess)

	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
	assert.False(t, mr.Exists("session:"+sess.ID))
}

func TestSessionLoadStoreFailure(t *testing.T) {
	sm, mr := newTestManager(t)
	sess := loadWith(t, sm, "")
	cookie := roundTrip(t, sm, sess)
	mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, err := sm.Load(context.Background(), req)
	assert.Error(t, err)
}

func TestCSRFTokens(t *testing.T) {
	sm, _ := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	sess := loadWith(t, sm, "")
	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)

	sm.Renew(sess)
	rotated, err := csrf.Rotate(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, rotated)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token), ErrCSRFTokenMismatch)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, " header-token ")
	assert.Equal(t, "header-token", TokenFromRequest(req))

	form := url.Values{CSRFFormField: {"form-token"}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, "form-token", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("--x\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	assert.Empty(t, TokenFromRequest(req))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5123"
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "198.51.100.8"
	assert.Equal(t, "198.51.100.8", ClientIP(req))
}
