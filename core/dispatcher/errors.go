package dispatcher

import "errors"

var (
	// ErrDispatchInProgress is returned when Subscribe, Unsubscribe or a new
	// dispatch is attempted while an action is being dispatched.
	ErrDispatchInProgress = errors.New("cannot run in the middle of a dispatch")

	// ErrNotDispatching is returned when WaitFor is called outside a dispatch cycle.
	ErrNotDispatching = errors.New("must be invoked while dispatching")

	// ErrCircularDependency is returned when WaitFor reaches a handler that is
	// already running but has not finished.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrUnknownToken is returned when WaitFor references a token with no ACTION subscription.
	ErrUnknownToken = errors.New("token does not map to a registered callback")

	// ErrInvalidAction is returned when Dispatch receives an action without a type or payload.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidChannel is returned when a channel name is empty.
	ErrInvalidChannel = errors.New("channel name cannot be empty")

	// ErrNilCallback is returned when a nil callback is subscribed.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrHandlerPanic wraps a panic recovered from a subscribed callback.
	ErrHandlerPanic = errors.New("handler panicked")
)
