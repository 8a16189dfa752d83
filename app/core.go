package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/fluxcore/core/config"
	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/injector"
	"github.com/dmitrymomot/fluxcore/core/logger"
	"github.com/dmitrymomot/fluxcore/core/sandbox"
)

const (
	// InitChannel is published once Init has started every module.
	InitChannel = "app init"

	// ErrorChannel receives an *ErrorReport for every error reported outside debug mode.
	ErrorChannel = "error"

	// CoreKey is the injector key the core registers itself under.
	CoreKey = "core"

	// DebugKey is the config key switching debug mode.
	DebugKey = "debug"
)

// Core owns the dispatcher, the service registry and the module lifecycle.
type Core struct {
	dispatcher *dispatcher.Dispatcher
	injector   *injector.Injector
	logger     *slog.Logger
	policy     sandbox.Policy

	mu           sync.RWMutex
	config       map[string]any
	services     map[string]any
	serviceOrder []string
	modules      map[string]*moduleEntry
	order        []string
	initialized  bool
}

// Option configures a Core.
type Option func(*Core)

// WithDispatcher sets the dispatcher used for messaging.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(c *Core) {
		if d != nil {
			c.dispatcher = d
		}
	}
}

// WithInjector sets the injector services are resolved from.
func WithInjector(i *injector.Injector) Option {
	return func(c *Core) {
		if i != nil {
			c.injector = i
		}
	}
}

// WithLogger sets the logger for the core.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug switches debug mode. In debug mode reported errors are returned
// to the caller instead of being published on ErrorChannel.
func WithDebug(debug bool) Option {
	return func(c *Core) {
		c.config[DebugKey] = debug
	}
}

// WithConfig merges cfg into the initial configuration.
func WithConfig(cfg map[string]any) Option {
	return func(c *Core) {
		maps.Copy(c.config, cfg)
	}
}

// WithPolicy sets the sandbox policy applied to every module.
func WithPolicy(p sandbox.Policy) Option {
	return func(c *Core) {
		if p != nil {
			c.policy = p
		}
	}
}

// New creates a Core and registers it in its injector under CoreKey.
func New(opts ...Option) *Core {
	c := &Core{
		logger:   slog.Default(),
		policy:   sandbox.AllowAll{},
		config:   defaultConfig(),
		services: make(map[string]any),
		modules:  make(map[string]*moduleEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dispatcher == nil {
		c.dispatcher = dispatcher.New(dispatcher.WithLogger(c.logger))
	}
	if c.injector == nil {
		c.injector = injector.New(injector.WithLogger(c.logger))
	}
	c.injector.Register(CoreKey, c)

	return c
}

func defaultConfig() map[string]any {
	return map[string]any{DebugKey: false}
}

// Init merges options into the config, starts every registered module and
// publishes InitChannel.
func (c *Core) Init(ctx context.Context, options map[string]any) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return fmt.Errorf("init: %w", ErrAlreadyInitialized)
	}
	maps.Copy(c.config, options)
	c.mu.Unlock()

	start := time.Now()
	if err := c.StartAll(ctx); err != nil {
		return err
	}

	if err := c.dispatcher.Publish(ctx, InitChannel); err != nil {
		if rerr := c.ReportError(ctx, fmt.Errorf("publish %q: %w", InitChannel, err)); rerr != nil {
			return rerr
		}
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "application initialized",
		logger.Count("modules", len(c.moduleNames())),
		logger.Count("services", len(c.serviceNames())),
		logger.Duration(time.Since(start)))

	return nil
}

// Destroy stops every running module, closes services implementing io.Closer
// in reverse registration order and resets the core to its initial state.
// Services and modules must be registered again afterwards.
func (c *Core) Destroy(ctx context.Context) error {
	errs := []error{c.StopAll(ctx)}

	c.mu.Lock()
	services, order := c.services, c.serviceOrder
	for name := range services {
		c.injector.Unregister(name)
	}
	c.config = defaultConfig()
	c.services = make(map[string]any)
	c.serviceOrder = nil
	c.modules = make(map[string]*moduleEntry)
	c.order = nil
	c.initialized = false
	c.mu.Unlock()

	for _, name := range slices.Backward(order) {
		closer, ok := services[name].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			c.logger.WarnContext(ctx, "service close failed", logger.Service(name), logger.Error(err))
			errs = append(errs, fmt.Errorf("close service '%s': %w", name, err))
		}
	}

	c.logger.InfoContext(ctx, "application destroyed")

	return errors.Join(errs...)
}

// Initialized reports whether Init completed.
func (c *Core) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Debug reports whether debug mode is on.
func (c *Core) Debug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug()
}

func (c *Core) debug() bool {
	debug, _ := c.config[DebugKey].(bool)
	return debug
}

// Config

// SetConfig merges cfg into the configuration. It fails once the core is initialized.
func (c *Core) SetConfig(cfg map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return ErrAlreadyInitialized
	}
	maps.Copy(c.config, cfg)
	return nil
}

// GetConfig returns a single config value.
func (c *Core) GetConfig(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.config[key]
	return v, ok
}

// ConfigMap returns a copy of the whole configuration.
func (c *Core) ConfigMap() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.config)
}

// LoadConfigFile merges a YAML options file into the configuration.
func (c *Core) LoadConfigFile(path string) error {
	opts, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return c.SetConfig(opts)
}

// Messaging

// Subscribe registers cb on channel.
func (c *Core) Subscribe(channel string, cb dispatcher.Callback) (dispatcher.Token, error) {
	return c.dispatcher.Subscribe(channel, cb)
}

// Unsubscribe removes the subscription identified by token.
func (c *Core) Unsubscribe(channel string, token dispatcher.Token) error {
	return c.dispatcher.Unsubscribe(channel, token)
}

// Publish sends args to the subscribers of channel.
func (c *Core) Publish(ctx context.Context, channel string, args ...any) error {
	return c.dispatcher.Publish(ctx, channel, args...)
}

// Dispatch sends an action to every ACTION subscriber.
func (c *Core) Dispatch(ctx context.Context, action dispatcher.Action) error {
	return c.dispatcher.Dispatch(ctx, action)
}

// WaitFor runs the given ACTION handlers first. Call it from an ACTION handler.
func (c *Core) WaitFor(ctx context.Context, tokens ...dispatcher.Token) error {
	return c.dispatcher.WaitFor(ctx, tokens...)
}

// Logger returns the core logger.
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

// Dispatcher returns the underlying dispatcher.
func (c *Core) Dispatcher() *dispatcher.Dispatcher {
	return c.dispatcher
}

// Injector returns the injector services are resolved from.
func (c *Core) Injector() *injector.Injector {
	return c.injector
}

// Errors

// ErrorReport describes an error raised by a module or the core.
type ErrorReport struct {
	Module string
	Method string
	Err    error
}

func (r *ErrorReport) Error() string {
	switch {
	case r.Module != "" && r.Method != "":
		return fmt.Sprintf("%s.%s: %v", r.Module, r.Method, r.Err)
	case r.Module != "":
		return fmt.Sprintf("%s: %v", r.Module, r.Err)
	default:
		return r.Err.Error()
	}
}

func (r *ErrorReport) Unwrap() error {
	return r.Err
}

// ReportError handles an error raised at runtime. In debug mode it returns
// err unchanged. Otherwise it publishes an *ErrorReport on ErrorChannel and
// returns nil.
func (c *Core) ReportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if c.Debug() {
		return err
	}

	var report *ErrorReport
	if !errors.As(err, &report) {
		report = &ErrorReport{Err: err}
	}

	c.logger.ErrorContext(ctx, "error reported",
		logger.Group("source",
			logger.Module(report.Module),
			logger.Method(report.Method)),
		logger.Error(report.Err))

	if perr := c.dispatcher.Publish(ctx, ErrorChannel, report); perr != nil {
		c.logger.ErrorContext(ctx, "error subscriber failed",
			logger.Channel(ErrorChannel),
			logger.Error(perr))
	}

	return nil
}
