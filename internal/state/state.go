// Package state is the single-writer container shared normalized collections
// go through. Readers get copies; every write is an Action applied by Reduce.
package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
)

// ActionType identifies a state transition.
type ActionType string

// Supported actions.
const (
	ActionReplace  ActionType = "replace"
	ActionRemove   ActionType = "remove"
	ActionSetField ActionType = "set_field"
)

// ErrStaleAction is returned by Dispatch for a stamped action older than the
// last stamped write to the same resource. The state is left unchanged.
var ErrStaleAction = errors.New("state: stale action")

// Action describes one write. Fields not used by Type are ignored.
type Action struct {
	Type     ActionType
	Resource string
	Items    []*normalize.Item
	ID       string
	Field    string
	Value    any
	// Seq orders writes that may reach Dispatch out of order. Zero means
	// unordered; see Container.Stamp.
	Seq uint64
}

// At returns a copy of a stamped with seq.
func (a Action) At(seq uint64) Action {
	a.Seq = seq
	return a
}

// Replace returns an action replacing the whole collection of resource.
func Replace(resource string, items []*normalize.Item) Action {
	return Action{Type: ActionReplace, Resource: resource, Items: items}
}

// Remove returns an action removing the record id.
func Remove(resource, id string) Action {
	return Action{Type: ActionRemove, Resource: resource, ID: id}
}

// SetField returns an action setting one field of the record id.
func SetField(resource, id, field string, value any) Action {
	return Action{Type: ActionSetField, Resource: resource, ID: id, Field: field, Value: value}
}

// State maps resource names to collections. A State value is never modified
// after it is built; Reduce returns a new one.
type State map[string][]*normalize.Item

// Reduce applies a to s and returns the resulting state. s is left intact.
func Reduce(s State, a Action) (State, error) {
	next := make(State, len(s)+1)
	for k, v := range s {
		next[k] = v
	}

	switch a.Type {
	case ActionReplace:
		next[a.Resource] = cloneItems(a.Items)
	case ActionRemove:
		cur := s[a.Resource]
		out := make([]*normalize.Item, 0, len(cur))
		for _, item := range cur {
			if item.ID != a.ID {
				out = append(out, item)
			}
		}
		next[a.Resource] = out
	case ActionSetField:
		cur := s[a.Resource]
		out := make([]*normalize.Item, len(cur))
		for i, item := range cur {
			if item.ID == a.ID {
				item = item.With(a.Field, a.Value)
			}
			out[i] = item
		}
		next[a.Resource] = out
	default:
		return s, fmt.Errorf("state: unknown action %q", a.Type)
	}
	return next, nil
}

// Listener is called after a write to resource has been applied.
type Listener func(resource string)

// Container holds the current State and serializes writes.
type Container struct {
	logger *zap.Logger

	mu    sync.RWMutex
	state State
	seqs  map[string]uint64
	clock atomic.Uint64

	listenersMu sync.RWMutex
	listeners   map[string]map[int]Listener
	wildcard    map[int]Listener
	nextID      int
}

// NewContainer creates an empty container. A nil logger disables logging.
func NewContainer(l *zap.Logger) *Container {
	return &Container{
		logger:    logger.OrNop(l).Named("state"),
		state:     State{},
		seqs:      make(map[string]uint64),
		listeners: make(map[string]map[int]Listener),
		wildcard:  make(map[int]Listener),
	}
}

// Stamp returns a sequence number greater than every earlier one. Writers
// take a stamp while their own state is locked and dispatch with it later;
// Dispatch then drops whichever write was decided first if it arrives last.
func (c *Container) Stamp() uint64 {
	return c.clock.Add(1)
}

// Dispatch applies a and notifies listeners of a.Resource. A stamped action
// not newer than the last stamped write to its resource is dropped with
// ErrStaleAction.
func (c *Container) Dispatch(a Action) error {
	c.mu.Lock()
	if a.Seq != 0 && a.Seq <= c.seqs[a.Resource] {
		last := c.seqs[a.Resource]
		c.mu.Unlock()
		return fmt.Errorf("%w: %s seq %d, last %d", ErrStaleAction, a.Resource, a.Seq, last)
	}
	next, err := Reduce(c.state, a)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	if a.Seq != 0 {
		c.seqs[a.Resource] = a.Seq
	}
	c.mu.Unlock()

	c.logger.Debug("action applied",
		zap.String("action", string(a.Type)),
		zap.String("resource", a.Resource),
		zap.String("id", a.ID),
		zap.Uint64("seq", a.Seq),
	)
	c.notify(a.Resource)
	return nil
}

// Select returns a copy of the collection of resource. The copies can be
// modified without affecting the container.
func (c *Container) Select(resource string) []*normalize.Item {
	c.mu.RLock()
	items := c.state[resource]
	c.mu.RUnlock()
	return cloneItems(items)
}

// Find returns a copy of one record.
func (c *Container) Find(resource, id string) (*normalize.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.state[resource] {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return nil, false
}

// Resources returns the names of resources holding a collection.
func (c *Container) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.state))
	for name := range c.state {
		names = append(names, name)
	}
	return names
}

// Subscribe registers fn for writes to the given resources, or to every
// resource when none are given. The returned function unsubscribes.
func (c *Container) Subscribe(fn Listener, resources ...string) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	if len(resources) == 0 {
		c.wildcard[id] = fn
	}
	for _, r := range resources {
		if c.listeners[r] == nil {
			c.listeners[r] = make(map[int]Listener)
		}
		c.listeners[r][id] = fn
	}

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.wildcard, id)
		for r, ls := range c.listeners {
			delete(ls, id)
			if len(ls) == 0 {
				delete(c.listeners, r)
			}
		}
	}
}

func (c *Container) notify(resource string) {
	c.listenersMu.RLock()
	fns := make([]Listener, 0, len(c.listeners[resource])+len(c.wildcard))
	for _, fn := range c.listeners[resource] {
		fns = append(fns, fn)
	}
	for _, fn := range c.wildcard {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		c.call(fn, resource)
	}
}

func (c *Container) call(fn Listener, resource string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", zap.String("resource", resource), zap.Any("panic", r))
		}
	}()
	fn(resource)
}

func cloneItems(items []*normalize.Item) []*normalize.Item {
	out := make([]*normalize.Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
