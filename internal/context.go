package internal

import (
	"context"

	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

// PrincipalFromContext returns the authenticated caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (*coreuser.Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*coreuser.Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *coreuser.Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}
