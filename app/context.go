package app

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
)

// ContextExtractors returns logger extractors that tag records logged from
// inside a dispatch with the action type and the running handler's token.
func ContextExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		func(ctx context.Context) (slog.Attr, bool) {
			action, ok := dispatcher.ActionFromContext(ctx)
			if !ok || action.Type == "" {
				return slog.Attr{}, false
			}
			return logger.ActionType(action.Type), true
		},
		func(ctx context.Context) (slog.Attr, bool) {
			token := dispatcher.TokenFromContext(ctx)
			if token == "" {
				return slog.Attr{}, false
			}
			return logger.Token(token), true
		},
	}
}
