package progress

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying the engine
func NewContext(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, contextKey{}, e)
}

// FromContext returns the engine stored in ctx, if any
func FromContext(ctx context.Context) (*Engine, bool) {
	e, ok := ctx.Value(contextKey{}).(*Engine)
	return e, ok && e != nil
}
