package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
)

// ChangeChannel is the channel change listeners are subscribed on.
const ChangeChannel = "CHANGE"

// ActionSource is the dispatcher a store registers with.
type ActionSource interface {
	Subscribe(channel string, cb dispatcher.Callback) (dispatcher.Token, error)
	Unsubscribe(channel string, token dispatcher.Token) error
	WaitFor(ctx context.Context, tokens ...dispatcher.Token) error
}

// Handler applies an action to store state and reports whether it changed.
type Handler interface {
	HandleAction(ctx context.Context, action dispatcher.Action) (changed bool, err error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, action dispatcher.Action) (bool, error)

func (f HandlerFunc) HandleAction(ctx context.Context, action dispatcher.Action) (bool, error) {
	return f(ctx, action)
}

// Store receives every dispatched action and notifies its own listeners when
// the handler reports a change.
type Store struct {
	src     ActionSource
	handler Handler
	changes *dispatcher.Dispatcher
	logger  *slog.Logger
	name    string

	mu      sync.Mutex
	token   dispatcher.Token
	changed bool
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithName names the store in log records. Defaults to "store".
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// New creates a store and registers it with src.
func New(src ActionSource, h Handler, opts ...Option) (*Store, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	s := &Store{
		src:     src,
		handler: h,
		logger:  slog.Default(),
		name:    "store",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.changes = dispatcher.New(dispatcher.WithLogger(s.logger))

	token, err := src.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(s.handle))
	if err != nil {
		return nil, fmt.Errorf("store: register: %w", err)
	}
	s.token = token

	return s, nil
}

// DispatchToken is the token the store is registered under; other stores
// pass it to WaitFor.
func (s *Store) DispatchToken() dispatcher.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// HasChanged reports whether the action being handled changed the store.
func (s *Store) HasChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// AddChangeListener subscribes cb to change notifications.
func (s *Store) AddChangeListener(cb dispatcher.Callback) (dispatcher.Token, error) {
	return s.changes.Subscribe(ChangeChannel, cb)
}

// RemoveChangeListener unsubscribes a change listener.
func (s *Store) RemoveChangeListener(token dispatcher.Token) error {
	return s.changes.Unsubscribe(ChangeChannel, token)
}

// EmitChange notifies every change listener.
func (s *Store) EmitChange(ctx context.Context) error {
	return s.changes.Publish(ctx, ChangeChannel)
}

// WaitFor runs the handlers of the given stores before continuing. It must
// be called from inside this store's handler.
func (s *Store) WaitFor(ctx context.Context, stores ...*Store) error {
	tokens := make([]dispatcher.Token, 0, len(stores))
	for _, other := range stores {
		tokens = append(tokens, other.DispatchToken())
	}
	return s.src.WaitFor(ctx, tokens...)
}

// Close unregisters the store from its action source.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.mu.Unlock()

	if err := s.src.Unsubscribe(dispatcher.ActionChannel, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) handle(ctx context.Context, action dispatcher.Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.changed = false
	s.mu.Unlock()

	changed, err := s.handler.HandleAction(ctx, action)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.mu.Lock()
	s.changed = true
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "store changed",
		logger.Component(s.name),
		logger.ActionType(action.Type))

	return s.EmitChange(ctx)
}
