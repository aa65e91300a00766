package users

import "context"

type userContextKey struct{}

// ContextWithUser stores the resolved account in context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// FromContext extracts the resolved account, nil when unauthenticated.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
