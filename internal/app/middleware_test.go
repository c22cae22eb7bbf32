package app

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustedRealIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("2001:db8::/32")}

	var seen string
	handler := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	cases := []struct {
		name   string
		remote string
		want   string
	}{
		{"untrusted peer keeps socket address", "198.51.100.7:52000", "198.51.100.7:52000"},
		{"trusted peer forwards client", "10.1.2.3:443", "203.0.113.9"},
		{"trusted ipv6 peer forwards client", "[2001:db8::1]:443", "203.0.113.9"},
		{"mapped address outside range", "[::ffff:198.51.100.7]:80", "[::ffff:198.51.100.7]:80"},
		{"unparseable peer", "pipe", "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestTrustedRealIPWithoutProxies(t *testing.T) {
	var seen string
	handler := TrustedRealIP(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	for _, header := range []string{"X-Forwarded-For", "X-Real-IP", "True-Client-IP"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "127.0.0.1:9000"
		req.Header.Set(header, "203.0.113.9")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "127.0.0.1:9000", seen, header)
	}
}
