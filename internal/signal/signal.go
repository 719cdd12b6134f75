// Package signal provides raise/reset flags that tell list stores to refetch,
// and a Redis relay carrying them between processes.
package signal

import (
	"sort"
	"sync"
)

// Signal is a boolean flag with a monotonic raise counter. Watchers are
// notified only on the transition from reset to raised.
type Signal struct {
	name string

	mu       sync.Mutex
	raised   bool
	count    uint64
	watchers map[int]chan struct{}
	nextID   int
}

// New creates a reset signal.
func New(name string) *Signal {
	return &Signal{name: name, watchers: make(map[int]chan struct{})}
}

// Name returns the signal name.
func (s *Signal) Name() string {
	return s.name
}

// Raise sets the signal. It reports whether this call changed it from reset
// to raised.
func (s *Signal) Raise() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.raised {
		return false
	}
	s.raised = true
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

// Reset clears the signal.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raised = false
}

// Raised reports whether the signal is set.
func (s *Signal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// Count returns how many times Raise was called.
func (s *Signal) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Notify registers a watcher. The channel has a buffer of one, so bursts of
// transitions collapse into a single pending notification. Call the returned
// function to stop watching.
func (s *Signal) Notify() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
		})
	}
}

// Board holds named signals, created on first use.
type Board struct {
	mu      sync.RWMutex
	signals map[string]*Signal
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{signals: make(map[string]*Signal)}
}

// Get returns the signal called name, creating it if needed.
func (b *Board) Get(name string) *Signal {
	b.mu.RLock()
	s, ok := b.signals[name]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.signals[name]; ok {
		return s
	}
	s = New(name)
	b.signals[name] = s
	return s
}

// Raise raises the signal called name.
func (b *Board) Raise(name string) bool {
	return b.Get(name).Raise()
}

// Names returns the names of all signals created so far, sorted.
func (b *Board) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.signals))
	for name := range b.signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Changed returns the conventional signal name raised when a resource
// changed elsewhere, e.g. "vehicles.changed".
func Changed(resource string) string {
	return resource + ".changed"
}
