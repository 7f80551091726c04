package factory

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a sequence cell. A Counter adopted through Parent is the same
// pointer in the parent and the child, so both observe every increment.
type Counter struct {
	n atomic.Int64
}

// Next advances the counter by step and returns the new value.
func (c *Counter) Next(step int64) int64 {
	return c.n.Add(step)
}

// Value returns the current value without advancing it.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// Sequences maps attribute names to the counters a factory evaluates against.
type Sequences struct {
	mu       sync.Mutex
	counters map[string]*Counter

	// owned marks cells created by Own. Adopt never replaces them.
	owned map[string]bool
}

// NewSequences creates an empty counter set.
func NewSequences() *Sequences {
	return &Sequences{
		counters: make(map[string]*Counter),
		owned:    make(map[string]bool),
	}
}

// Counter returns the counter for name, creating it at zero on first use.
func (s *Sequences) Counter(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[name]
	if !ok {
		c = &Counter{}
		s.counters[name] = c
	}
	return c
}

// Own gives name a counter of its own, dropping a cell adopted from a parent.
// A counter the set already owns is kept.
func (s *Sequences) Own(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[name]
	if !ok || !s.owned[name] {
		c = &Counter{}
		s.counters[name] = c
		s.owned[name] = true
	}
	return c
}

// Has reports whether a counter exists for name.
func (s *Sequences) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.counters[name]
	return ok
}

// Adopt links every counter of parent that s does not already hold.
// The cells are shared, not copied.
func (s *Sequences) Adopt(parent *Sequences) {
	if parent == nil || parent == s {
		return
	}

	parent.mu.Lock()
	inherited := make(map[string]*Counter, len(parent.counters))
	for name, c := range parent.counters {
		inherited[name] = c
	}
	parent.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range inherited {
		if _, own := s.counters[name]; !own {
			s.counters[name] = c
		}
	}
}

// Snapshot returns the current value of every counter.
func (s *Sequences) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counters))
	for name, c := range s.counters {
		out[name] = c.Value()
	}
	return out
}

// Names returns the sorted counter names.
func (s *Sequences) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.counters))
	for name := range s.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset zeroes every counter. Shared cells are reset for the whole lineage.
func (s *Sequences) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.counters {
		c.Reset()
	}
}
