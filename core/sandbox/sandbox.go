package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
)

// ErrForbidden is returned when the policy denies a module a publish or dispatch.
var ErrForbidden = errors.New("module is not authorized")

// Core is the part of the application core a sandbox forwards to.
type Core interface {
	Publish(ctx context.Context, channel string, args ...any) error
	Dispatch(ctx context.Context, action dispatcher.Action) error
	Subscribe(channel string, cb dispatcher.Callback) (dispatcher.Token, error)
	Unsubscribe(channel string, token dispatcher.Token) error
	GetConfig(key string) (any, bool)
	ReportError(ctx context.Context, err error) error
	HasService(name string) bool
	GetService(name string) (any, error)
}

// Policy decides what a module may publish and dispatch.
type Policy interface {
	CanPublish(module, channel string) bool
	CanDispatch(module, actionType string) bool
}

// AllowAll is the default policy; it permits everything.
type AllowAll struct{}

func (AllowAll) CanPublish(string, string) bool  { return true }
func (AllowAll) CanDispatch(string, string) bool { return true }

// ModulesConfigKey is the core config key holding per-module option maps.
const ModulesConfigKey = "modules"

// Sandbox is the facade through which a module talks to the rest of the
// application. A module never holds the core itself.
type Sandbox struct {
	core   Core
	module string
	policy Policy
	logger *slog.Logger

	mu   sync.Mutex
	subs map[dispatcher.Token]string
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithPolicy sets the publish/dispatch policy.
func WithPolicy(p Policy) Option {
	return func(s *Sandbox) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithLogger sets the logger for the sandbox.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a sandbox for the named module.
func New(core Core, module string, opts ...Option) *Sandbox {
	s := &Sandbox{
		core:   core,
		module: module,
		policy: AllowAll{},
		logger: slog.Default(),
		subs:   make(map[dispatcher.Token]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ModuleName returns the name of the module owning this sandbox.
func (s *Sandbox) ModuleName() string {
	return s.module
}

// Publish sends data on channel. When then is not nil it runs after a
// successful publish.
func (s *Sandbox) Publish(ctx context.Context, channel string, data any, then func()) error {
	if !s.policy.CanPublish(s.module, channel) {
		return fmt.Errorf("%w: module %s cannot publish on %q", ErrForbidden, s.module, channel)
	}

	if err := s.core.Publish(ctx, channel, data); err != nil {
		return err
	}

	if then != nil {
		then()
	}
	return nil
}

// Dispatch creates an action of the given type and dispatches it.
func (s *Sandbox) Dispatch(ctx context.Context, actionType string, payload any) error {
	if !s.policy.CanDispatch(s.module, actionType) {
		return fmt.Errorf("%w: module %s cannot create action of type %q", ErrForbidden, s.module, actionType)
	}
	return s.core.Dispatch(ctx, dispatcher.NewAction(actionType, payload))
}

// Subscribe registers cb on channel. Subscriptions made through the sandbox
// are released by Close.
func (s *Sandbox) Subscribe(channel string, cb dispatcher.Callback) (dispatcher.Token, error) {
	token, err := s.core.Subscribe(channel, cb)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.subs[token] = channel
	s.mu.Unlock()

	return token, nil
}

// SubscribeOnce registers cb for a single delivery. The subscription removes
// itself after the first call; if that happens during an action dispatch the
// subscription stays registered until Close but never fires again.
// Deliveries triggered from inside cb are ignored.
func (s *Sandbox) SubscribeOnce(channel string, cb dispatcher.Callback) (dispatcher.Token, error) {
	var (
		fired atomic.Bool
		token dispatcher.Token
	)

	wrapped := func(ctx context.Context, args ...any) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		err := cb(ctx, args...)

		if uerr := s.Unsubscribe(channel, token); uerr != nil && !errors.Is(uerr, dispatcher.ErrDispatchInProgress) {
			return errors.Join(err, uerr)
		}
		return err
	}

	var err error
	token, err = s.Subscribe(channel, wrapped)
	return token, err
}

// Unsubscribe removes a subscription by token.
func (s *Sandbox) Unsubscribe(channel string, token dispatcher.Token) error {
	if err := s.core.Unsubscribe(channel, token); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.subs, token)
	s.mu.Unlock()

	return nil
}

// Close releases every subscription made through the sandbox.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[dispatcher.Token]string)
	s.mu.Unlock()

	var errs []error
	for token, channel := range subs {
		if err := s.core.Unsubscribe(channel, token); err != nil {
			errs = append(errs, err)
		}
	}

	if len(subs) > 0 {
		s.logger.Debug("sandbox closed",
			logger.Module(s.module),
			logger.Count("subscriptions", len(subs)))
	}

	return errors.Join(errs...)
}

// GetConfig returns a module option, falling back to the global config.
// Module options live under core config "modules" -> module name -> key.
func (s *Sandbox) GetConfig(name string) (any, bool) {
	if modules, ok := s.core.GetConfig(ModulesConfigKey); ok {
		if all, ok := modules.(map[string]any); ok {
			if own, ok := all[s.module].(map[string]any); ok {
				if v, ok := own[name]; ok {
					return v, true
				}
			}
		}
	}
	return s.core.GetConfig(name)
}

// ReportError forwards err to the core, tagged with the module name.
func (s *Sandbox) ReportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return s.core.ReportError(ctx, fmt.Errorf("module %s: %w", s.module, err))
}

// HasService reports whether the core has the named service.
func (s *Sandbox) HasService(name string) bool {
	return s.core.HasService(name)
}

// GetService returns the named service from the core.
func (s *Sandbox) GetService(name string) (any, error) {
	return s.core.GetService(name)
}
