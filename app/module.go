package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrymomot/fluxcore/core/logger"
	"github.com/dmitrymomot/fluxcore/core/sandbox"
)

// Module is an independent unit of application behavior. It reaches the rest
// of the application only through the sandbox it was built with.
type Module interface {
	Start(ctx context.Context, services map[string]any) error
	Stop(ctx context.Context) error
}

// ModuleFactory builds a module instance on every start.
type ModuleFactory func(sb *sandbox.Sandbox, name string, options map[string]any) (Module, error)

type moduleEntry struct {
	factory  ModuleFactory
	services []string
	options  map[string]any

	instance Module
	sandbox  *sandbox.Sandbox
}

// RegisterModule registers a module factory under name. services lists the
// services the module is given on start; starting fails when one is missing.
func (c *Core) RegisterModule(name string, services []string, factory ModuleFactory, options map[string]any) error {
	if name == "" {
		return fmt.Errorf("register module: %w", ErrInvalidName)
	}
	if factory == nil {
		return fmt.Errorf("register module '%s': %w", name, ErrNilFactory)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.modules[name]; exists {
		return fmt.Errorf("module '%s' %w", name, ErrModuleExists)
	}

	c.modules[name] = &moduleEntry{
		factory:  factory,
		services: slices.Clone(services),
		options:  maps.Clone(options),
	}
	c.order = append(c.order, name)

	return nil
}

// Start builds a fresh instance of the named module and starts it with the
// services it declared.
//
// Outside debug mode the instance is wrapped so that errors and panics from
// its Start and Stop are reported on ErrorChannel instead of being returned.
func (c *Core) Start(ctx context.Context, name string) error {
	c.mu.RLock()
	entry, ok := c.modules[name]
	if !ok {
		c.mu.RUnlock()
		return fmt.Errorf("module '%s' %w", name, ErrModuleNotFound)
	}
	if entry.instance != nil {
		c.mu.RUnlock()
		return fmt.Errorf("module '%s' %w", name, ErrModuleRunning)
	}

	services := make(map[string]any, len(entry.services))
	for _, svc := range entry.services {
		instance, ok := c.services[svc]
		if !ok {
			c.mu.RUnlock()
			return fmt.Errorf("%w: module '%s' requires '%s'", ErrMissingService, name, svc)
		}
		services[svc] = instance
	}
	factory, options := entry.factory, maps.Clone(entry.options)
	debug := c.debug()
	c.mu.RUnlock()

	sb := sandbox.New(c, name,
		sandbox.WithPolicy(c.policy),
		sandbox.WithLogger(c.logger.With(logger.Module(name))))

	instance, err := c.build(ctx, factory, sb, name, options)
	if err != nil || instance == nil {
		return errors.Join(err, sb.Close())
	}
	if !debug {
		instance = &productionModule{Module: instance, core: c, name: name}
	}

	if err := instance.Start(ctx, services); err != nil {
		return errors.Join(err, sb.Close())
	}

	c.mu.Lock()
	entry.instance = instance
	entry.sandbox = sb
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "module started",
		logger.Module(name),
		logger.Count("services", len(services)))

	return nil
}

// build runs the module factory. A failing factory is reported like any
// other module error; a nil module with a nil error means the failure was
// already routed to ErrorChannel.
func (c *Core) build(ctx context.Context, factory ModuleFactory, sb *sandbox.Sandbox, name string, options map[string]any) (m Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = c.ReportError(ctx, &ErrorReport{Module: name, Method: "New", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	m, err = factory(sb, name, options)
	if err != nil {
		return nil, c.ReportError(ctx, &ErrorReport{Module: name, Method: "New", Err: err})
	}
	if m == nil {
		return nil, c.ReportError(ctx, &ErrorReport{Module: name, Method: "New", Err: ErrNilModule})
	}
	return m, nil
}

// Stop stops the named module and releases its sandbox subscriptions.
func (c *Core) Stop(ctx context.Context, name string) error {
	c.mu.Lock()
	entry, ok := c.modules[name]
	if !ok || entry.instance == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModuleNotStarted, name)
	}
	instance, sb := entry.instance, entry.sandbox
	entry.instance, entry.sandbox = nil, nil
	c.mu.Unlock()

	err := errors.Join(instance.Stop(ctx), sb.Close())

	c.logger.DebugContext(ctx, "module stopped", logger.Module(name), logger.Error(err))

	return err
}

// Restart stops and starts the named module.
func (c *Core) Restart(ctx context.Context, name string) error {
	if err := c.Stop(ctx, name); err != nil {
		return err
	}
	return c.Start(ctx, name)
}

// StartAll starts every registered module that is not running, in
// registration order. It stops at the first error.
func (c *Core) StartAll(ctx context.Context) error {
	for _, name := range c.moduleNames() {
		if c.IsRunning(name) {
			continue
		}
		if err := c.Start(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every running module in registration order and returns the
// joined errors.
func (c *Core) StopAll(ctx context.Context) error {
	var errs []error
	for _, name := range c.moduleNames() {
		if !c.IsRunning(name) {
			continue
		}
		if err := c.Stop(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.logger.WarnContext(ctx, "modules failed to stop", logger.Errors(errs...))
	}
	return errors.Join(errs...)
}

// IsRunning reports whether the named module is started.
func (c *Core) IsRunning(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.modules[name]
	return ok && entry.instance != nil
}

// Modules returns the registered module names in registration order.
func (c *Core) Modules() []string {
	return c.moduleNames()
}

func (c *Core) moduleNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// productionModule routes the errors and panics of a module to ReportError.
type productionModule struct {
	Module
	core *Core
	name string
}

func (m *productionModule) Start(ctx context.Context, services map[string]any) (err error) {
	defer m.recoverPanic(ctx, "Start", &err)
	return m.report(ctx, "Start", m.Module.Start(ctx, services))
}

func (m *productionModule) Stop(ctx context.Context) (err error) {
	defer m.recoverPanic(ctx, "Stop", &err)
	return m.report(ctx, "Stop", m.Module.Stop(ctx))
}

func (m *productionModule) report(ctx context.Context, method string, err error) error {
	if err == nil {
		return nil
	}
	return m.core.ReportError(ctx, &ErrorReport{Module: m.name, Method: method, Err: err})
}

func (m *productionModule) recoverPanic(ctx context.Context, method string, err *error) {
	if r := recover(); r != nil {
		m.core.logger.DebugContext(ctx, "module panicked",
			logger.Module(m.name),
			logger.Method(method),
			logger.Panic(r))
		*err = m.report(ctx, method, fmt.Errorf("panic: %v", r))
	}
}
