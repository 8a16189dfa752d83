// Package sandbox provides the facade a module uses to reach the rest of the
// application: messaging, actions, configuration, services and error reporting.
//
// The core creates one Sandbox per started module and hands it to the module
// factory. Modules only know their sandbox; they never reference the core or
// other modules directly.
//
//	func NewTodoList(sb *sandbox.Sandbox, name string, opts map[string]any) (app.Module, error) {
//		return &TodoList{sb: sb}, nil
//	}
//
//	func (m *TodoList) add(ctx context.Context, text string) error {
//		return m.sb.Dispatch(ctx, "todo.create", Todo{Text: text})
//	}
//
// A Policy restricts which channels a module may publish on and which action
// types it may dispatch. The default policy allows everything.
package sandbox
