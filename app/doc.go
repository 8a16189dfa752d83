// Package app provides Core, the application object that ties modules,
// services and the action dispatcher together.
//
// Services are shared objects built through the injector. Modules are
// independent units that talk to each other only through messages; each one
// gets a sandbox when it starts.
//
//	c := app.New(app.WithDebug(true))
//
//	_ = c.RegisterService("logger", injector.Inject(func() *Logger { return &Logger{} }), nil)
//	_ = c.RegisterModule("todo-list", []string{"logger"}, NewTodoList, nil)
//
//	if err := c.Init(ctx, nil); err != nil {
//		log.Fatal(err)
//	}
//	defer c.Destroy(ctx)
//
// # Error Reporting
//
// In debug mode errors reported through ReportError are returned to the
// caller. Otherwise they are published on ErrorChannel as *ErrorReport and
// swallowed, and module Start and Stop calls are guarded so that their
// errors and panics take the same route.
package app
