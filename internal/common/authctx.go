package common

import "context"

type ctxKey string

const userIDKey ctxKey = "auth/user-id"

// WithUserID records the verified caller identity on the context. Tenant
// identity travels separately, in the tenant package.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the verified caller identity, if any.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
