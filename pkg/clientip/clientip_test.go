package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/labgrid/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:4000", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"first valid forwarded", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.1, 10.0.0.2"}, "10.0.0.1:1", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.9"}, "10.0.0.1:1", "198.51.100.9"},
		{"invalid header falls through", map[string]string{"X-Real-IP": "nope"}, "10.0.0.1:1", "10.0.0.1"},
		{"ipv6 normalized", map[string]string{"X-Forwarded-For": "2001:DB8::1"}, "", "2001:db8::1"},
		{"mapped ipv4", nil, "[::ffff:192.0.2.3]:80", "192.0.2.3"},
		{"nothing valid", nil, "bogus", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	var ok bool
	h := clientip.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = clientip.Extract(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.44:9000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, ok)
	assert.Equal(t, "192.0.2.44", got)
}
