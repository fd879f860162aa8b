package httputil

import (
	"context"
	"net/http"
)

// contextKey is unexported so request-scoped values set here cannot
// collide with other packages.
type contextKey string

const (
	userIDKey contextKey = "userID"
)

// WithUserID stamps the verified identity onto the request context. The
// auth middleware is the only writer.
func WithUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

// GetUserID returns the verified identity, or "" on an unauthenticated
// request (public paths skip the middleware).
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
