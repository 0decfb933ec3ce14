package internal

import (
	"context"
	"slices"
	"time"
)

type ctxKey string

const ContextAdminKey ctxKey = "admin"

// AdminPrincipal is the bearer of a verified admin token.
type AdminPrincipal struct {
	Subject     string
	Permissions []string
}

func (p *AdminPrincipal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Permissions, permission)
}

func AdminFromContext(ctx context.Context) (*AdminPrincipal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(ContextAdminKey).(*AdminPrincipal)
	return principal, ok && principal != nil
}

func ContextWithAdmin(ctx context.Context, principal *AdminPrincipal) context.Context {
	return context.WithValue(ctx, ContextAdminKey, principal)
}

// WithOptionalTimeout bounds ctx only when duration is positive.
func WithOptionalTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, duration)
}
