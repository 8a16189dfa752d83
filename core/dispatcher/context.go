package dispatcher

import "context"

type actionCtx struct{}

// WithAction attaches the in-flight action to the context.
func WithAction(ctx context.Context, action Action) context.Context {
	return context.WithValue(ctx, actionCtx{}, action)
}

// ActionFromContext extracts the in-flight action from the context.
// Returns false outside an ACTION dispatch.
func ActionFromContext(ctx context.Context) (Action, bool) {
	a, ok := ctx.Value(actionCtx{}).(Action)
	return a, ok
}

type tokenCtx struct{}

// withToken attaches the token of the running subscription to the context.
func withToken(ctx context.Context, token Token) context.Context {
	return context.WithValue(ctx, tokenCtx{}, token)
}

// TokenFromContext returns the token of the subscription currently being invoked.
// Returns empty string if not present.
func TokenFromContext(ctx context.Context) Token {
	if t, ok := ctx.Value(tokenCtx{}).(Token); ok {
		return t
	}
	return ""
}
