package tenant

import (
	"context"
	"strings"
)

type contextKey string

const tenantContextKey contextKey = "tenant.id"

// With stores the tenant identifier inside the context. The binding is
// confined to the returned context and every context derived from it, so two
// concurrent requests can never observe each other's tenant.
func With(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// From extracts the tenant identifier from the context if available.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, ok := ctx.Value(tenantContextKey).(string)
	if !ok {
		return "", false
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", false
	}
	return tenantID, true
}

// Run executes fn with tenantID bound for the dynamic extent of the call.
// The binding lives only on the context passed to fn; it is released on every
// exit path because the caller's context is never mutated. Goroutines spawned
// inside fn inherit the binding through the derived context.
func Run(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(With(ctx, tenantID))
}

// PrefixKey namespaces a cache or queue key per tenant slug or id.
func PrefixKey(tenantSlugOrID, key string) string {
	if tenantSlugOrID == "" {
		return key
	}
	return tenantSlugOrID + ":" + key
}
