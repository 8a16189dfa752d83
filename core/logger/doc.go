// Package logger provides structured logging utilities built on Go's standard slog package.
// It offers environment presets, context-aware attribute extraction, and attribute helpers
// for the names used across the framework (modules, services, channels, tokens, actions).
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/fluxcore/core/logger"
//
//	log := logger.New(
//		logger.WithDevelopment("todos"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("module started",
//		logger.Module("todo-list"),
//		logger.Component("core"),
//	)
//
// # Environment Configurations
//
//	// Development: text format, debug level
//	devLogger := logger.New(logger.WithDevelopment("todos"))
//
//	// Production: JSON format, info level
//	prodLogger := logger.New(logger.WithProduction("todos"))
//
//	// Chosen from a config value
//	log := logger.New(logger.WithEnvironment("todos", cfg.Env))
//
// # Context-Aware Logging
//
// Extractors add attributes taken from the context of each record:
//
//	log := logger.New(logger.WithContextExtractors(actionExtractor))
//	log.InfoContext(ctx, "store updated")
//
// # Attribute Helpers
//
// Helpers return an empty attribute for empty input, so they can be passed
// unconditionally:
//
//	log.Error("dispatch failed",
//		logger.Error(err),
//		logger.ActionType(action.Type),
//		logger.Token(token),
//		logger.Duration(time.Since(start)),
//	)
//
// # Testing with Custom Output
//
//	var buf bytes.Buffer
//	log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
//	log.Info("Test message", logger.Component("test"))
//	assert.Contains(t, buf.String(), `"component":"test"`)
package logger
