package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Attribute helpers return an empty Attr for empty input, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks.

// Group creates a group of attributes under a single key.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// ============================================================================
// Error Handling
// ============================================================================

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// Uses index-based keys to preserve error order.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Panic creates an attribute for a recovered panic value.
func Panic(v any) slog.Attr {
	if v == nil {
		return slog.Attr{}
	}
	return slog.Any("panic", v)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// ============================================================================
// Application Structure
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Module creates an attribute for module names.
func Module(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("module", name)
}

// Service creates an attribute for service names.
func Service(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("service", name)
}

// Method creates an attribute for the name of an invoked method.
func Method(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("method", name)
}

// ============================================================================
// Messaging
// ============================================================================

// Channel creates an attribute for pub/sub channel names.
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Token creates an attribute for subscription tokens.
func Token[T ~string](token T) slog.Attr {
	if token == "" {
		return slog.Attr{}
	}
	return slog.String("token", string(token))
}

// ActionType creates an attribute for dispatched action types.
func ActionType(t string) slog.Attr {
	if t == "" {
		return slog.Attr{}
	}
	return slog.String("action_type", t)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Key creates a generic key-value attribute.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}
