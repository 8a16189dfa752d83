package todo

import (
	"io"

	"github.com/dmitrymomot/fluxcore/app"
	"github.com/dmitrymomot/fluxcore/core/injector"
	"github.com/dmitrymomot/fluxcore/core/store"
)

func newCoreStore(c *app.Core) (*Store, error) {
	return NewStore(c, store.WithLogger(c.Logger()))
}

// Register wires the todo store and modules into c. Rendered output goes to out.
// The store is closed by c.Destroy.
func Register(c *app.Core, out io.Writer) error {
	if err := c.RegisterService(OutputService, injector.Inject(func() io.Writer { return out }), nil); err != nil {
		return err
	}
	if err := c.RegisterService(StoreService, injector.Inject(newCoreStore, app.CoreKey), nil); err != nil {
		return err
	}
	if err := c.RegisterModule("todo-input", nil, NewInput, nil); err != nil {
		return err
	}
	return c.RegisterModule("todo-list", []string{StoreService, OutputService}, NewList, nil)
}
