// Package dispatcher provides an in-process publish/subscribe hub combined
// with a Flux-style action dispatcher.
//
// Any channel name can be used for plain messaging. The reserved channel
// ActionChannel ("ACTION") carries actions: every action handler runs once per
// dispatched action, in subscription order, unless a handler uses WaitFor to
// pull other handlers forward.
//
// # Basic Usage
//
//	d := dispatcher.New()
//
//	token, err := d.Subscribe("user.updated", func(ctx context.Context, args ...any) error {
//		user := args[0].(User)
//		return render(user)
//	})
//
//	err = d.Publish(ctx, "user.updated", user)
//	err = d.Unsubscribe("user.updated", token)
//
// # Actions and WaitFor
//
// Stores subscribe to ActionChannel and keep the returned token. A store that
// depends on another store's state waits for it:
//
//	usersToken, _ := d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(users.handle))
//
//	d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(
//		func(ctx context.Context, a dispatcher.Action) error {
//			if err := d.WaitFor(ctx, usersToken); err != nil {
//				return err
//			}
//			return profiles.handle(ctx, a)
//		},
//	))
//
//	err := d.Dispatch(ctx, dispatcher.NewAction("user.created", user))
//
// A handler waited for is invoked at most once per dispatch, so several
// handlers may wait for the same one. Waiting for a handler that is still
// running returns ErrCircularDependency.
//
// # Dispatch Cycle
//
// While an action is dispatched, Subscribe, Unsubscribe and further dispatches
// return ErrDispatchInProgress. Plain channels can still be published to, which
// is how stores emit change notifications from inside their action handlers.
// The cycle is always closed when Dispatch returns, whether handlers succeed,
// fail or panic.
//
// # Error Handling
//
// Callback errors are wrapped with the subscription token and returned to the
// publisher. Panics are recovered and reported as ErrHandlerPanic. On plain
// channels the first failure stops delivery to the remaining subscribers;
// WithContinueOnError delivers to all of them and joins the errors.
package dispatcher
