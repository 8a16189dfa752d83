package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the unit broadcast on the ACTION channel.
type Action struct {
	ID        string    `json:"id"`         // Unique identifier of the action
	Type      string    `json:"type"`       // Action type, e.g. "todo.create"
	Payload   any       `json:"payload"`    // Action data
	CreatedAt time.Time `json:"created_at"` // When the action was created
}

// NewAction creates an Action with an auto-generated ID and timestamp.
//
// Example:
//
//	action := dispatcher.NewAction("todo.create", Todo{Text: "buy milk"})
//	err := d.Dispatch(ctx, action)
func NewAction(actionType string, payload any) Action {
	return Action{
		ID:        uuid.New().String(),
		Type:      actionType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Validate reports whether the action carries a type and a payload.
func (a Action) Validate() error {
	if a.Type == "" {
		return fmt.Errorf("%w: action type should be a non-empty string", ErrInvalidAction)
	}
	if a.Payload == nil {
		return fmt.Errorf("%w: action %q payload should be present", ErrInvalidAction, a.Type)
	}
	return nil
}

// UnmarshalJSON decodes an action, accepting the legacy "data" key
// when "payload" is absent.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Data      json.RawMessage `json:"data"`
		CreatedAt time.Time       `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal action: %w", err)
	}

	body := raw.Payload
	if len(body) == 0 {
		body = raw.Data
	}

	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal action payload: %w", err)
		}
	}

	*a = Action{
		ID:        raw.ID,
		Type:      raw.Type,
		Payload:   payload,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// ActionFrom extracts the Action from callback arguments received on the ACTION channel.
func ActionFrom(args []any) (Action, bool) {
	if len(args) == 0 {
		return Action{}, false
	}
	switch v := args[0].(type) {
	case Action:
		return v, true
	case *Action:
		if v == nil {
			return Action{}, false
		}
		return *v, true
	}
	return Action{}, false
}

// OnAction adapts a typed action handler to a Callback.
// Arguments that do not carry an Action are ignored.
//
// Example:
//
//	token, err := d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(
//	    func(ctx context.Context, a dispatcher.Action) error {
//	        return store.apply(a)
//	    },
//	))
func OnAction(fn func(context.Context, Action) error) Callback {
	return func(ctx context.Context, args ...any) error {
		action, ok := ActionFrom(args)
		if !ok {
			return nil
		}
		return fn(ctx, action)
	}
}
