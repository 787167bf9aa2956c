package auth

import (
	"context"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal kinds.
const (
	KindUser     = "user"
	KindEmployee = "employee"
	KindCustomer = "customer"
)

// Principal identifies the authenticated caller and the tenant it belongs to.
type Principal struct {
	Kind      string
	ID        string
	CompanyID string
	IsAdmin   bool
}

func (p Principal) IsStaff() bool {
	return p.Kind == KindUser || p.Kind == KindEmployee
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) Principal {
	if v, ok := ctx.Value(principalKey).(Principal); ok {
		return v
	}
	return Principal{}
}

// CompanyID returns the tenant id of the authenticated caller, or "".
func CompanyID(ctx context.Context) string {
	return FromContext(ctx).CompanyID
}
