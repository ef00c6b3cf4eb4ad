package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const principalKey ctxKey = "je.principal"

// Principal is the verified caller of a request.
type Principal struct {
	Subject   uuid.UUID
	Role      string
	SessionID uuid.UUID // caseworkers only
}

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the caller from context.
func PrincipalFromCtx(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.Subject == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}
