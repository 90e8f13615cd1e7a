package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dmitrymomot/labgrid/pkg/clientip"
)

const maxKeyLength = 64

// KeyFunc extracts the bucket key from a request. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// ByIP keys requests by client IP.
func ByIP(r *http.Request) string {
	if ip := clientip.GetIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.GetIP(r)
}

// ByPath keys requests by route path.
func ByPath(r *http.Request) string {
	return r.URL.Path
}

// Composite joins the non-empty keys of several functions. Keys longer than
// 64 characters are replaced by a truncated SHA-256 hex digest.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		combined := strings.Join(parts, ":")
		if len(combined) > maxKeyLength {
			sum := sha256.Sum256([]byte(combined))
			return hex.EncodeToString(sum[:16])
		}
		return combined
	}
}
