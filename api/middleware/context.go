package middleware

import (
	"context"

	"github.com/angelmondragon/marketreports-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		return v
	}
	return 0
}

func RoleFromContext(ctx context.Context) auth.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(auth.Role); ok {
		return v
	}
	return ""
}

// WithCaller injects the authenticated caller into the context.
func WithCaller(ctx context.Context, userID int64, role auth.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxRole, role)
}
