package middleware

import (
	"context"
	"net/http"

	"marketplace/internal/identity"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UsernameKey  contextKey = "username"
)

// Identity resolves the acting user once per request and stores it on the
// request context for GetUsername.
func Identity(resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, ok := resolver.Resolve(r); ok {
				r = r.WithContext(context.WithValue(r.Context(), UsernameKey, username))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUsername returns the identity resolved for r, if any.
func GetUsername(r *http.Request) (string, bool) {
	username, ok := r.Context().Value(UsernameKey).(string)
	return username, ok && username != ""
}

// Owner is GetUsername as a nullable value, the form stores take.
func Owner(r *http.Request) *string {
	if username, ok := GetUsername(r); ok {
		return &username
	}
	return nil
}

func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDKey).(string)
	return id
}
