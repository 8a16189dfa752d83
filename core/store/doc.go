// Package store implements Flux stores on top of the action dispatcher.
//
// A store registers itself on the ACTION channel of an ActionSource. Each
// dispatched action goes to the store's Handler; when the handler reports a
// change, the store notifies its change listeners on a private CHANGE channel.
//
//	todos, err := store.New(d, store.HandlerFunc(func(ctx context.Context, a dispatcher.Action) (bool, error) {
//		switch a.Type {
//		case "todo.create":
//			items = append(items, a.Payload.(string))
//			return true, nil
//		}
//		return false, nil
//	}))
//
//	todos.AddChangeListener(func(ctx context.Context, _ ...any) error {
//		return render(items)
//	})
//
// A handler that depends on another store's state calls WaitFor with that
// store, which runs the other store's handler first within the same dispatch.
package store
