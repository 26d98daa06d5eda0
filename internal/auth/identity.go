package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleBusiness Role = "business"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBusiness, RoleCustomer:
		return true
	}
	return false
}

// Identity is the authenticated actor attached to a request. BusinessID is
// zero for customers.
type Identity struct {
	UserID     int64
	BusinessID int64
	Role       Role
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
