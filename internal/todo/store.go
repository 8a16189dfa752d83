package todo

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/store"
)

// Action types handled by Store.
const (
	ActionCreate         = "todo.create"
	ActionToggle         = "todo.toggle"
	ActionDestroy        = "todo.destroy"
	ActionClearCompleted = "todo.clear_completed"
)

// Item is a single todo entry.
type Item struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
	Done bool   `json:"done" yaml:"done"`
}

// Store holds the todo list.
type Store struct {
	*store.Store

	mu     sync.RWMutex
	items  []Item
	lastID int
}

// NewStore creates a todo store registered with src.
func NewStore(src store.ActionSource, opts ...store.Option) (*Store, error) {
	s := &Store{}
	opts = append([]store.Option{store.WithName("todos")}, opts...)
	inner, err := store.New(src, store.HandlerFunc(s.handle), opts...)
	if err != nil {
		return nil, err
	}
	s.Store = inner
	return s, nil
}

// Items returns a copy of the current list.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Remaining returns the number of items not done.
func (s *Store) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, it := range s.items {
		if !it.Done {
			n++
		}
	}
	return n
}

func (s *Store) handle(ctx context.Context, a dispatcher.Action) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Type {
	case ActionCreate:
		text, ok := a.Payload.(string)
		if !ok {
			return false, fmt.Errorf("%s: payload must be a string, got %T", a.Type, a.Payload)
		}
		if text == "" {
			return false, nil
		}
		s.lastID++
		s.items = append(s.items, Item{ID: strconv.Itoa(s.lastID), Text: text})
		return true, nil

	case ActionToggle:
		i := s.index(a.Payload)
		if i < 0 {
			return false, nil
		}
		s.items[i].Done = !s.items[i].Done
		return true, nil

	case ActionDestroy:
		i := s.index(a.Payload)
		if i < 0 {
			return false, nil
		}
		s.items = slices.Delete(s.items, i, i+1)
		return true, nil

	case ActionClearCompleted:
		n := len(s.items)
		s.items = slices.DeleteFunc(s.items, func(it Item) bool { return it.Done })
		return len(s.items) != n, nil
	}

	return false, nil
}

// index finds an item by id. Caller must hold s.mu.
func (s *Store) index(payload any) int {
	id, ok := payload.(string)
	if !ok {
		return -1
	}
	return slices.IndexFunc(s.items, func(it Item) bool { return it.ID == id })
}
