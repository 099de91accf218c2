package middlewares

import (
	"context"

	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/token"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyTenant
	ctxKeyClaims
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID devuelve el request ID inyectado por WithRequestID, o "".
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(ctxKeyRequestID).(string)
	return rid
}

func setTenant(ctx context.Context, t *core.Tenant) context.Context {
	return context.WithValue(ctx, ctxKeyTenant, t)
}

// GetTenant devuelve el tenant resuelto por RequireTenant, o nil.
func GetTenant(ctx context.Context) *core.Tenant {
	t, _ := ctx.Value(ctxKeyTenant).(*core.Tenant)
	return t
}

func setClaims(ctx context.Context, c *token.VerifiedClaims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// GetClaims devuelve las claims verificadas por RequireAuth, o nil.
func GetClaims(ctx context.Context) *token.VerifiedClaims {
	c, _ := ctx.Value(ctxKeyClaims).(*token.VerifiedClaims)
	return c
}
