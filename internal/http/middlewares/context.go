package middlewares

import (
	"context"

	"github.com/dropDatabas3/ssohub/internal/token"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyPrincipal
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID devuelve el request id del contexto, o "" si no hay.
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(ctxKeyRequestID).(string)
	return rid
}

func setPrincipal(ctx context.Context, p token.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// GetPrincipal devuelve el principal autenticado del contexto, o nil.
func GetPrincipal(ctx context.Context) token.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(token.Principal)
	return p
}
