package auth

import (
	"context"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
)

type contextKey struct{}

type requestIDKey struct{}

// AuthContext is the decoded session cookie of the current request.
type AuthContext struct {
	TokenID   string
	ExpiresAt time.Time
	Session   *access.Session
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// Session returns the request's session, or nil for an anonymous request.
func Session(ctx context.Context) *access.Session {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.Session
}

func UserID(ctx context.Context) string {
	s := Session(ctx)
	if s == nil {
		return ""
	}
	return s.UserID
}

func IsAdmin(ctx context.Context) bool {
	return access.HasRole(Session(ctx), access.RoleAdmin)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
