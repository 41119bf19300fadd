package tenant

import "context"

// ctxKey is an unexported context key type to avoid collisions across packages.
type ctxKey struct{}

// NewContext returns a child context carrying the active tenant database name.
// The binding is request-scoped: it lives and dies with the request context,
// so a worker goroutine reused for a later, unrelated request can never
// observe a stale tenant. There is deliberately no process-wide fallback.
func NewContext(ctx context.Context, dbName string) context.Context {
	if dbName == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, dbName)
}

// FromContext returns the bound tenant database name and whether one is bound.
func FromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ctxKey{}).(string)
	return name, ok && name != ""
}
