// Package fluxcore is an application core for building modular programs around a
// Flux-style action dispatcher. Modules are isolated behind sandboxes, share
// services through a name-based injector, and communicate only through
// messages and actions.
//
// # Package Organization
//
// For detailed documentation on any package, use the go doc command:
//
//	go doc github.com/dmitrymomot/fluxcore/core/dispatcher
//	go doc -all github.com/dmitrymomot/fluxcore/app
//
// # Application
//
//	github.com/dmitrymomot/fluxcore/app                 - Core: services, module lifecycle, config and error routing
//
// # Core Packages
//
//	github.com/dmitrymomot/fluxcore/core/dispatcher     - Publish/subscribe dispatcher with ordered ACTION dispatch and WaitFor
//	github.com/dmitrymomot/fluxcore/core/injector       - Name-based dependency injection for factory functions
//	github.com/dmitrymomot/fluxcore/core/sandbox        - Module facade with publish/dispatch policy
//	github.com/dmitrymomot/fluxcore/core/store          - Flux stores with change listeners
//	github.com/dmitrymomot/fluxcore/core/config         - Type-safe environment loading and YAML option files
//	github.com/dmitrymomot/fluxcore/core/logger         - slog construction and attribute helpers
//
// # Commands
//
//	github.com/dmitrymomot/fluxcore/cmd/fluxcore        - Todo list demo CLI
//
// # Quick Start
//
//	d := dispatcher.New()
//
//	todos, _ := d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(func(ctx context.Context, a dispatcher.Action) error {
//		// update todo state
//		return nil
//	}))
//
//	_, _ = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
//		// runs after the todos handler
//		return d.WaitFor(ctx, todos)
//	})
//
//	err := d.Dispatch(ctx, dispatcher.NewAction("todo.create", "buy milk"))
package fluxcore
