// Package todo is a small todo list built on the application core: a store
// holding the items, an input module that turns text into actions and a list
// module that renders the store whenever it changes.
package todo
