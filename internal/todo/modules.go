package todo

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrymomot/fluxcore/app"
	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/sandbox"
)

// Channel and service names shared by the todo modules.
const (
	InputChannel  = "todo input"
	StoreService  = "todos"
	OutputService = "output"
)

// Input turns text published on InputChannel into create actions.
type Input struct {
	sb *sandbox.Sandbox
}

// NewInput is the module factory for Input.
func NewInput(sb *sandbox.Sandbox, _ string, _ map[string]any) (app.Module, error) {
	return &Input{sb: sb}, nil
}

func (m *Input) Start(ctx context.Context, _ map[string]any) error {
	_, err := m.sb.Subscribe(InputChannel, func(ctx context.Context, args ...any) error {
		for _, arg := range args {
			text, ok := arg.(string)
			if !ok {
				continue
			}
			if err := m.sb.Dispatch(ctx, ActionCreate, text); err != nil {
				return m.sb.ReportError(ctx, err)
			}
		}
		return nil
	})
	return err
}

func (m *Input) Stop(context.Context) error {
	return nil
}

// List renders the todo list to the output service on every store change.
type List struct {
	sb     *sandbox.Sandbox
	todos  *Store
	out    io.Writer
	token  dispatcher.Token
	prefix string
}

// NewList is the module factory for List. The "prefix" option is printed
// before every rendered line; it is read from the module options first and
// then from the module config.
func NewList(sb *sandbox.Sandbox, _ string, options map[string]any) (app.Module, error) {
	m := &List{sb: sb, prefix: "- "}
	if p, ok := options["prefix"].(string); ok {
		m.prefix = p
	} else if v, ok := sb.GetConfig("prefix"); ok {
		if p, ok := v.(string); ok {
			m.prefix = p
		}
	}
	return m, nil
}

func (m *List) Start(ctx context.Context, services map[string]any) error {
	todos, ok := services[StoreService].(*Store)
	if !ok {
		return fmt.Errorf("list: service %q is %T", StoreService, services[StoreService])
	}
	out, ok := services[OutputService].(io.Writer)
	if !ok {
		return fmt.Errorf("list: service %q is %T", OutputService, services[OutputService])
	}
	m.todos, m.out = todos, out

	token, err := todos.AddChangeListener(func(ctx context.Context, _ ...any) error {
		return m.Render()
	})
	if err != nil {
		return err
	}
	m.token = token
	return nil
}

func (m *List) Stop(context.Context) error {
	return m.todos.RemoveChangeListener(m.token)
}

// Render writes the current list followed by the remaining count.
func (m *List) Render() error {
	for _, it := range m.todos.Items() {
		mark := " "
		if it.Done {
			mark = "x"
		}
		if _, err := fmt.Fprintf(m.out, "%s[%s] %s %s\n", m.prefix, mark, it.ID, it.Text); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(m.out, "%d remaining\n", m.todos.Remaining())
	return err
}
