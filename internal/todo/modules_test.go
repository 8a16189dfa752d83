package todo_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fluxcore/app"
	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
	"github.com/dmitrymomot/fluxcore/internal/todo"
)

func newApp(t *testing.T, debug bool) (*app.Core, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	c := app.New(app.WithDebug(debug), app.WithLogger(logger.Discard()))
	require.NoError(t, todo.Register(c, &out))
	require.NoError(t, c.Init(context.Background(), nil))
	t.Cleanup(func() { _ = c.Destroy(context.Background()) })

	return c, &out
}

func TestModules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, out := newApp(t, true)

	require.NoError(t, c.Publish(ctx, todo.InputChannel, "milk"))
	assert.Equal(t, "- [ ] 1 milk\n1 remaining\n", out.String())

	out.Reset()
	require.NoError(t, c.Publish(ctx, todo.InputChannel, "eggs", 7))
	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionToggle, "1")))
	assert.Equal(t,
		"- [ ] 1 milk\n- [ ] 2 eggs\n2 remaining\n"+
			"- [x] 1 milk\n- [ ] 2 eggs\n1 remaining\n",
		out.String())

	svc, err := app.ServiceAs[*todo.Store](c, todo.StoreService)
	require.NoError(t, err)
	assert.Len(t, svc.Items(), 2)
}

func TestModules_StopDetachesList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, out := newApp(t, true)

	require.NoError(t, c.Stop(ctx, "todo-list"))
	require.NoError(t, c.Stop(ctx, "todo-input"))

	require.NoError(t, c.Publish(ctx, todo.InputChannel, "milk"))
	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionCreate, "eggs")))
	assert.Empty(t, out.String())

	require.NoError(t, c.StartAll(ctx))
	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionCreate, "bread")))
	assert.Equal(t, "- [ ] 1 eggs\n- [ ] 2 bread\n2 remaining\n", out.String())
}

func TestModules_ProductionErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newApp(t, false)

	var reports []*app.ErrorReport
	_, err := c.Subscribe(app.ErrorChannel, func(ctx context.Context, args ...any) error {
		reports = append(reports, args[0].(*app.ErrorReport))
		return nil
	})
	require.NoError(t, err)

	_, err = c.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
		return assert.AnError
	})
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, todo.InputChannel, "milk"))
	require.Len(t, reports, 1)
	assert.ErrorIs(t, reports[0], assert.AnError)
	assert.Contains(t, reports[0].Error(), "module todo-input")
}

func TestList_PrefixFromModuleConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var out bytes.Buffer
	c := app.New(app.WithLogger(logger.Discard()), app.WithConfig(map[string]any{
		"modules": map[string]any{
			"todo-list": map[string]any{"prefix": "* "},
		},
	}))
	require.NoError(t, todo.Register(c, &out))
	require.NoError(t, c.Init(ctx, nil))

	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionCreate, "milk")))
	assert.Equal(t, "* [ ] 1 milk\n1 remaining\n", out.String())
}

func TestRegister_StoreUsesCoreLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var logs, out bytes.Buffer
	log := logger.New(logger.WithOutput(&logs), logger.WithLevel(slog.LevelDebug))
	c := app.New(app.WithDebug(true), app.WithLogger(log))
	require.NoError(t, todo.Register(c, &out))
	require.NoError(t, c.Init(ctx, nil))

	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionCreate, "milk")))
	assert.Contains(t, logs.String(), "store changed")
	assert.Contains(t, logs.String(), "component=todos")
	assert.Contains(t, logs.String(), "action_type=todo.create")
}

func TestRegister_AfterDestroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var out bytes.Buffer
	c := app.New(app.WithDebug(true), app.WithLogger(logger.Discard()))

	require.NoError(t, todo.Register(c, &out))
	require.NoError(t, c.Init(ctx, nil))
	require.NoError(t, c.Destroy(ctx))
	assert.Empty(t, c.Dispatcher().Tokens(dispatcher.ActionChannel))

	require.NoError(t, todo.Register(c, &out))
	require.NoError(t, c.Init(ctx, nil))
	t.Cleanup(func() { _ = c.Destroy(ctx) })
	assert.Len(t, c.Dispatcher().Tokens(dispatcher.ActionChannel), 1)

	out.Reset()
	require.NoError(t, c.Dispatch(ctx, dispatcher.NewAction(todo.ActionCreate, "milk")))
	assert.Equal(t, "- [ ] 1 milk\n1 remaining\n", out.String())
}
