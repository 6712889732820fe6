package auth

import (
	"context"

	"buildtrack/internal/rbac"
)

type ctxKey string

const sessionKey ctxKey = "session"

// Session is the authenticated identity resolved from a request token.
type Session struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Role  rbac.Role `json:"role"`
	Email string    `json:"email"`
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) Session {
	if v, ok := ctx.Value(sessionKey).(Session); ok {
		return v
	}
	return Session{}
}
