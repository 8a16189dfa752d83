package app

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/dmitrymomot/fluxcore/core/injector"
	"github.com/dmitrymomot/fluxcore/core/logger"
)

// Initializer is implemented by services that take options after construction.
type Initializer interface {
	Init(options map[string]any) error
}

// RegisterService builds a service from factory and registers it under name.
// The factory's dependencies are resolved from the injector, so a service may
// depend on services registered before it and on the core itself.
//
// Example:
//
//	err := c.RegisterService("calculator", injector.Inject(newCalculator, "logger"), nil)
func (c *Core) RegisterService(name string, factory injector.Factory, options map[string]any) error {
	if name == "" {
		return fmt.Errorf("register service: %w", ErrInvalidName)
	}
	if factory.Fn == nil {
		return fmt.Errorf("register service '%s': %w", name, ErrNilFactory)
	}
	if c.HasService(name) {
		return fmt.Errorf("service '%s' %w", name, ErrServiceExists)
	}

	svc, err := c.injector.Resolve(factory, nil)
	if err != nil {
		return fmt.Errorf("register service '%s': %w", name, err)
	}

	if init, ok := svc.(Initializer); ok {
		if options == nil {
			options = map[string]any{}
		}
		if err := init.Init(options); err != nil {
			return fmt.Errorf("init service '%s': %w", name, err)
		}
	}

	c.mu.Lock()
	if _, exists := c.services[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("service '%s' %w", name, ErrServiceExists)
	}
	c.services[name] = svc
	c.serviceOrder = append(c.serviceOrder, name)
	c.mu.Unlock()

	c.injector.Register(name, svc)
	c.logger.Debug("service registered",
		logger.Service(name),
		logger.Key("dependencies", factory.Deps))

	return nil
}

// HasService reports whether a service is registered under name.
func (c *Core) HasService(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.services[name]
	return ok
}

// GetService returns the service registered under name.
func (c *Core) GetService(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("service '%s' %w", name, ErrServiceNotFound)
	}
	return svc, nil
}

// ServiceAs returns the named service asserted to T.
func ServiceAs[T any](c *Core, name string) (T, error) {
	var zero T

	svc, err := c.GetService(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' is %T, not %s", name, svc, reflect.TypeFor[T]())
	}
	return typed, nil
}

func (c *Core) serviceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
