package httpx

import (
	"net/http"
	"strings"
)

// Predicate decides whether an authenticated identity may proceed.
type Predicate func(Identity) bool

// IsAuthenticated passes any identity that made it through authn.
func IsAuthenticated(Identity) bool { return true }

// IsStaffAndActive requires a staff account that has not been disabled.
func IsStaffAndActive(id Identity) bool { return id.Staff && id.Active }

// HasAllPermissions requires every listed permission.
func HasAllPermissions(perms ...string) Predicate {
	return func(id Identity) bool { return id.HasAllPermissions(perms...) }
}

// Require gates a handler behind a predicate over the current identity.
// An unauthenticated request or a failing predicate yields 403.
func Require(pred Predicate) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || !pred(id) {
				writePermissionDenied(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated gates a handler behind any valid login.
func RequireAuthenticated() Middleware { return Require(IsAuthenticated) }

// RequireStaff gates a handler behind staff-and-active status.
func RequireStaff() Middleware { return Require(IsStaffAndActive) }

// RequirePermissions gates a handler behind a full permission set.
func RequirePermissions(perms ...string) Middleware { return Require(HasAllPermissions(perms...)) }

func writePermissionDenied(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"permission_denied","error_description":"you do not have permission to perform this action"}` + "\n"))
}

// Chain composes middlewares outermost-first around a handler.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ParseSpaceDelimitedFields splits a space-delimited string into fields.
// Returns nil if the input is empty or whitespace-only.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
