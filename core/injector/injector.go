package injector

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Injector is a registry of named values that are supplied to factories
// declaring them as dependencies.
//
// Example:
//
//	inj := injector.New()
//	inj.Register("logger", logger)
//
//	calc, err := inj.Resolve(injector.Inject(newCalculator, "logger"), nil)
type Injector struct {
	mu     sync.RWMutex
	values map[string]any
	logger *slog.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger for the injector.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Injector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an empty injector.
func New(opts ...Option) *Injector {
	i := &Injector{
		values: make(map[string]any),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Register stores value under key, replacing any previous value.
func (i *Injector) Register(key string, value any) {
	i.mu.Lock()
	_, replaced := i.values[key]
	i.values[key] = value
	i.mu.Unlock()

	if replaced {
		i.logger.Debug("dependency replaced", slog.String("dependency", key))
	}
}

// Unregister removes the value stored under key.
func (i *Injector) Unregister(key string) {
	i.mu.Lock()
	delete(i.values, key)
	i.mu.Unlock()
}

// Get returns the value registered under key.
func (i *Injector) Get(key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.values[key]
	return v, ok
}

// Has reports whether a value is registered under key.
func (i *Injector) Has(key string) bool {
	_, ok := i.Get(key)
	return ok
}

// Keys returns the registered keys in sorted order.
func (i *Injector) Keys() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := make([]string, 0, len(i.values))
	for k := range i.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Resolve calls the factory with its declared dependencies and returns the result.
//
// Each dependency is looked up in locals first, then in the registry.
// Dependencies that cannot be found are passed as the zero value of the
// parameter type; this is logged but not treated as an error.
//
// The factory may return nothing, a value, an error, or a value and an error.
func (i *Injector) Resolve(f Factory, locals map[string]any) (any, error) {
	fn := reflect.ValueOf(f.Fn)
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("%w, got %T", ErrNotFunction, f.Fn)
	}

	args, err := i.arguments(fn.Type(), f.Deps, locals)
	if err != nil {
		return nil, err
	}

	return results(fn.Type(), fn.Call(args))
}

// ResolveAs resolves the factory and asserts the result to T.
//
// Example:
//
//	calc, err := injector.ResolveAs[*Calculator](inj, injector.Inject(newCalculator, "logger"), nil)
func ResolveAs[T any](i *Injector, f Factory, locals map[string]any) (T, error) {
	var zero T

	v, err := i.Resolve(f, locals)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: factory returned %T, expected %T", ErrTypeMismatch, v, zero)
	}
	return typed, nil
}

// Populate sets the exported fields of the struct pointed to by target that
// carry an `inject:"name"` tag. The tag option "optional" suppresses the log
// line for a missing dependency; missing dependencies leave the field untouched.
//
// Example:
//
//	type Deps struct {
//	    Logger *slog.Logger `inject:"logger"`
//	    Cache  Cache        `inject:"cache,optional"`
//	}
//
//	var deps Deps
//	err := inj.Populate(&deps, nil)
func (i *Injector) Populate(target any, locals map[string]any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrInvalidTarget, target)
	}

	elem := rv.Elem()
	st := elem.Type()

	for idx := range st.NumField() {
		field := st.Field(idx)
		tag, ok := field.Tag.Lookup("inject")
		if !ok || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("%w: field %s.%s is unexported", ErrInvalidTarget, st.Name(), field.Name)
		}

		name, optional := parseTag(tag, field.Name)
		value, found := i.lookup(name, locals)
		if !found {
			if !optional {
				i.logger.Debug("dependency not registered",
					slog.String("dependency", name),
					slog.String("field", field.Name))
			}
			continue
		}

		v, err := assignable(name, value, field.Type)
		if err != nil {
			return err
		}
		elem.Field(idx).Set(v)
	}

	return nil
}

func (i *Injector) lookup(name string, locals map[string]any) (any, bool) {
	if v, ok := locals[name]; ok {
		return v, true
	}
	return i.Get(name)
}

func (i *Injector) arguments(ft reflect.Type, deps []string, locals map[string]any) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	if ft.IsVariadic() {
		if len(deps) < numIn-1 {
			return nil, fmt.Errorf("%w: %d declared, at least %d required", ErrArityMismatch, len(deps), numIn-1)
		}
	} else if len(deps) != numIn {
		return nil, fmt.Errorf("%w: %d declared, %d required", ErrArityMismatch, len(deps), numIn)
	}

	args := make([]reflect.Value, 0, len(deps))
	for idx, name := range deps {
		pt := paramType(ft, idx)

		value, found := i.lookup(name, locals)
		if !found {
			i.logger.Debug("dependency not registered", slog.String("dependency", name))
			args = append(args, reflect.Zero(pt))
			continue
		}

		v, err := assignable(name, value, pt)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	return args, nil
}

func paramType(ft reflect.Type, idx int) reflect.Type {
	last := ft.NumIn() - 1
	if ft.IsVariadic() && idx >= last {
		return ft.In(last).Elem()
	}
	return ft.In(idx)
}

func assignable(name string, value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("%w: %q is %s, parameter is %s", ErrTypeMismatch, name, v.Type(), t)
	}
	return v, nil
}

var errorType = reflect.TypeFor[error]()

func results(ft reflect.Type, out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}

	var err error
	if ft.Out(len(out)-1) == errorType {
		if e := out[len(out)-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return nil, err
	}
	return out[0].Interface(), err
}

func parseTag(tag, fieldName string) (name string, optional bool) {
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = fieldName
	}
	return name, opts == "optional"
}
