package graphql

import (
	"context"

	"solarcycle.GO/core/app"
)

// Context keys for resolver injection (avoids circular imports).
type contextKey string

const ctxKeyApp contextKey = "app"

// WithApp attaches the service container for extension resolvers.
func WithApp(ctx context.Context, a *app.App) context.Context {
	return context.WithValue(ctx, ctxKeyApp, a)
}

// AppFromContext returns the container attached by WithApp, or nil.
func AppFromContext(ctx context.Context) *app.App {
	a, _ := ctx.Value(ctxKeyApp).(*app.App)
	return a
}
