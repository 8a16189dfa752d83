package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/fluxcore/core/logger"
)

const (
	// ActionChannel is the reserved channel used for Flux-style action broadcast.
	ActionChannel = "ACTION"

	tokenPrefix = "ID_"
)

// Token identifies a single subscription. Tokens are unique per dispatcher
// for its whole lifetime, across all channels.
type Token string

// Callback receives the arguments published on a channel.
// A returned error stops the current publish and is propagated to its caller.
type Callback func(ctx context.Context, args ...any) error

type subscription struct {
	id       Token
	callback Callback
}

// cycle is the state of one ACTION dispatch. A handler is pending from the
// moment it is claimed and handled once it returned without error.
type cycle struct {
	payload []any
	pending map[Token]bool
	handled map[Token]bool
}

// Dispatcher is a publish/subscribe hub with a Flux dispatcher on the
// reserved ACTION channel.
//
// Plain channels deliver synchronously to their subscribers in subscription
// order. The ACTION channel runs a dispatch cycle: every handler is invoked
// once per action, and a handler may call WaitFor to have other handlers run
// before it continues.
//
// Example:
//
//	d := dispatcher.New(dispatcher.WithLogger(logger))
//	usersToken, _ := d.Subscribe(dispatcher.ActionChannel, usersStore)
//	d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
//	    return d.WaitFor(ctx, usersToken)
//	})
//	err := d.Dispatch(ctx, dispatcher.NewAction("user.created", user))
type Dispatcher struct {
	mu        sync.Mutex
	callbacks map[string][]subscription
	lastID    uint64

	cycle *cycle

	continueOnError bool
	logger          *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// New creates a new dispatcher with the given options.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		callbacks: make(map[string][]subscription),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe appends a callback to the channel and returns its token.
// Subscribing while an action is being dispatched is rejected.
func (d *Dispatcher) Subscribe(channel string, cb Callback) (Token, error) {
	if channel == "" {
		return "", ErrInvalidChannel
	}
	if cb == nil {
		return "", ErrNilCallback
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cycle != nil {
		return "", inProgress("Subscribe")
	}

	d.lastID++
	id := Token(tokenPrefix + strconv.FormatUint(d.lastID, 10))
	d.callbacks[channel] = append(d.callbacks[channel], subscription{id: id, callback: cb})

	return id, nil
}

// Unsubscribe removes the subscription identified by token from the channel.
// Unknown channels and tokens are a no-op.
// Unsubscribing while an action is being dispatched is rejected.
func (d *Dispatcher) Unsubscribe(channel string, token Token) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cycle != nil {
		return inProgress("Unsubscribe")
	}

	subs, ok := d.callbacks[channel]
	if !ok {
		return nil
	}

	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != token {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		delete(d.callbacks, channel)
		return nil
	}
	d.callbacks[channel] = kept

	return nil
}

// Publish invokes the channel's callbacks in subscription order.
//
// On plain channels the first failing callback aborts the remaining ones,
// unless the dispatcher was built WithContinueOnError. Publishing on
// ActionChannel starts a dispatch cycle; see Dispatch.
func (d *Dispatcher) Publish(ctx context.Context, channel string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if channel == ActionChannel {
		return d.publishAction(ctx, args)
	}

	d.mu.Lock()
	subs := slices.Clone(d.callbacks[channel])
	d.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := d.invoke(ctx, s, args); err != nil {
			if !d.continueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Dispatch validates the action and broadcasts it on ActionChannel.
// It returns ErrInvalidAction before any handler runs when the action has no
// type or payload, and ErrDispatchInProgress when called during a dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if d.IsDispatching() {
		return inProgress("Dispatch")
	}
	return d.Publish(ctx, ActionChannel, action)
}

// WaitFor runs the handlers identified by tokens before returning, using the
// payload of the current dispatch. It must be called from an ACTION handler.
//
// A handler that already finished during this cycle is skipped. Waiting for a
// handler that is still running is a circular dependency. Checking and
// claiming a handler happen atomically, so each handler runs at most once per
// cycle even when WaitFor is called from several goroutines.
func (d *Dispatcher) WaitFor(ctx context.Context, tokens ...Token) error {
	for _, token := range tokens {
		d.mu.Lock()
		c := d.cycle
		if c == nil {
			d.mu.Unlock()
			return fmt.Errorf("WaitFor: %w", ErrNotDispatching)
		}

		if c.pending[token] {
			handled := c.handled[token]
			d.mu.Unlock()
			if !handled {
				return fmt.Errorf("%w while waiting for %s", ErrCircularDependency, token)
			}
			continue
		}

		s, ok := d.lookup(token)
		if !ok {
			d.mu.Unlock()
			return fmt.Errorf("WaitFor: %s: %w", token, ErrUnknownToken)
		}
		c.pending[s.id] = true
		d.mu.Unlock()

		if err := d.invokeAction(ctx, c, s); err != nil {
			return err
		}
	}

	return nil
}

// IsDispatching reports whether an action dispatch cycle is in progress.
func (d *Dispatcher) IsDispatching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle != nil
}

// Tokens returns the tokens subscribed to the channel in invocation order.
func (d *Dispatcher) Tokens(channel string) []Token {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.callbacks[channel]
	tokens := make([]Token, 0, len(subs))
	for _, s := range subs {
		tokens = append(tokens, s.id)
	}
	return tokens
}

func (d *Dispatcher) publishAction(ctx context.Context, args []any) error {
	d.mu.Lock()
	if d.cycle != nil {
		d.mu.Unlock()
		return inProgress("Dispatch")
	}
	handlers := slices.Clone(d.callbacks[ActionChannel])
	c := &cycle{
		payload: args,
		pending: make(map[Token]bool, len(handlers)),
		handled: make(map[Token]bool, len(handlers)),
	}
	d.cycle = c
	d.mu.Unlock()

	defer d.stopDispatching()

	action, hasAction := ActionFrom(args)
	if hasAction {
		ctx = WithAction(ctx, action)
	}

	start := time.Now()
	for _, s := range handlers {
		d.mu.Lock()
		if c.pending[s.id] {
			d.mu.Unlock()
			continue
		}
		c.pending[s.id] = true
		d.mu.Unlock()

		if err := d.invokeAction(ctx, c, s); err != nil {
			d.logger.DebugContext(ctx, "action dispatch failed",
				logger.ActionType(action.Type),
				logger.Token(s.id),
				logger.Elapsed(start),
				logger.Error(err))
			return err
		}
	}

	d.logger.DebugContext(ctx, "action dispatched",
		logger.ActionType(action.Type),
		logger.Count("handlers", len(handlers)),
		logger.Elapsed(start))

	return nil
}

// invokeAction runs an ACTION handler already marked pending in c and marks
// it handled once it returns without error.
func (d *Dispatcher) invokeAction(ctx context.Context, c *cycle, s subscription) error {
	if err := d.invoke(ctx, s, c.payload); err != nil {
		return err
	}

	d.mu.Lock()
	c.handled[s.id] = true
	d.mu.Unlock()

	return nil
}

func (d *Dispatcher) stopDispatching() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycle = nil
}

// lookup finds an ACTION subscription by token. Caller must hold d.mu.
func (d *Dispatcher) lookup(token Token) (subscription, bool) {
	for _, s := range d.callbacks[ActionChannel] {
		if s.id == token {
			return s, true
		}
	}
	return subscription{}, false
}

// invoke executes a callback with panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, s subscription, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.DebugContext(ctx, "handler panicked",
				logger.Token(s.id),
				logger.Panic(r))
			err = fmt.Errorf("handler %s: %w: %v", s.id, ErrHandlerPanic, r)
		}
	}()

	if err := s.callback(withToken(ctx, s.id), args...); err != nil {
		return fmt.Errorf("handler %s failed: %w", s.id, err)
	}
	return nil
}

func inProgress(method string) error {
	return fmt.Errorf("dispatcher.%s: %w", method, ErrDispatchInProgress)
}
