// Package injector provides a small name-based dependency injector.
//
// Values are registered under string keys. Factories declare the keys of
// their dependencies explicitly, in parameter order, and Resolve calls them
// with the matching values.
//
// # Basic Usage
//
//	inj := injector.New()
//	inj.Register("logger", logger)
//
//	calc, err := inj.Resolve(injector.Inject(func(l *slog.Logger) *Calculator {
//		return &Calculator{log: l}
//	}, "logger"), nil)
//
// The list form mirrors a literal dependency array:
//
//	f, err := injector.Annotate("logger", newCalculator)
//
// # Locals
//
// Resolve and Populate accept a map of local values that take precedence over
// the registry for a single call:
//
//	svc, err := inj.Resolve(f, map[string]any{"logger": testLogger})
//
// # Struct Injection
//
// Populate fills tagged struct fields instead of calling a function:
//
//	type Deps struct {
//		Logger *slog.Logger `inject:"logger"`
//	}
//
// # Missing Dependencies
//
// A dependency that is registered nowhere is passed as the zero value of its
// parameter type. Resolve does not fail in that case; the injector logs the
// missing key at debug level. Callers that need a hard failure should check
// Has before resolving.
package injector
