package injector

import (
	"fmt"
	"reflect"
)

// Factory is a function paired with the ordered names of the dependencies
// passed as its arguments.
type Factory struct {
	Deps []string
	Fn   any
}

// Inject declares the dependencies of fn by name, in parameter order.
//
// Example:
//
//	func newCalculator(logger *slog.Logger) *Calculator { ... }
//
//	f := injector.Inject(newCalculator, "logger")
func Inject(fn any, deps ...string) Factory {
	return Factory{Deps: deps, Fn: fn}
}

// Annotate builds a Factory from a list whose last element is the function
// and whose preceding elements are dependency names.
//
// Example:
//
//	f, err := injector.Annotate("logger", "config", newService)
func Annotate(parts ...any) (Factory, error) {
	if len(parts) == 0 {
		return Factory{}, fmt.Errorf("%w, got nothing", ErrNotFunction)
	}

	fn := parts[len(parts)-1]
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return Factory{}, fmt.Errorf("%w, got %T", ErrNotFunction, fn)
	}

	deps := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		name, ok := p.(string)
		if !ok {
			return Factory{}, fmt.Errorf("%w, got %T (%v)", ErrInvalidToken, p, p)
		}
		deps = append(deps, name)
	}

	return Factory{Deps: deps, Fn: fn}, nil
}
