// Package clientip resolves the originating client address of a request.
//
// Proxy headers are consulted in order: CF-Connecting-IP, X-Forwarded-For
// (first valid entry), X-Real-IP, then RemoteAddr. Only syntactically valid
// addresses are returned, normalized by net/netip. Deploy behind a proxy that
// overwrites these headers; otherwise clients can spoof them.
package clientip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// GetIP returns the client address, or "" when nothing valid is found.
func GetIP(r *http.Request) string {
	for _, h := range proxyHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}

type contextKey struct{}

// SetIPToContext stores ip in ctx.
func SetIPToContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// GetIPFromContext returns the address stored by Middleware.
func GetIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Extract reports the client address in the form audit extractors expect.
func Extract(ctx context.Context) (string, bool) {
	ip := GetIPFromContext(ctx)
	return ip, ip != ""
}

// Middleware stores the client address in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(SetIPToContext(r.Context(), GetIP(r))))
	})
}
