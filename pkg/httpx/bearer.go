package httpx

import (
	"net/http"
	"strings"
)

// BearerToken reads the configured auth header and returns the raw token.
//
// The value must be exactly "<prefix> <token>" with a single whitespace
// separator; the prefix comparison is case-insensitive. An absent or
// malformed header is a "no credential present" result, not an error:
// unauthenticated requests proceed and the guard predicates decide whether
// that is acceptable.
func BearerToken(h http.Header, name, prefix string) (string, bool) {
	parts := strings.Fields(h.Get(name))
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], prefix) {
		return "", false
	}
	return parts[1], true
}
