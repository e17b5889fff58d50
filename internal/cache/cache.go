// Package cache provides the memoization table backing the plant's
// demand-driven computations. Each entry is keyed by a computation id and a
// set of dependency tickets; any write that bumps a ticket's version
// invalidates dependent entries, which recompute lazily on next read.
package cache

import "fmt"

// Ticket names a dependency dimension a computation can declare.
type Ticket int

const (
	Configuration Ticket = iota // generalized positions
	Velocity                    // generalized velocities
	Parameters                  // contact/material parameters, locking
	Inputs                      // input port values
	numTickets
)

// Versions is the dependency version vector owned by one evaluation
// context. Single-threaded by design: contexts are never shared across
// goroutines, so plain counters suffice.
type Versions [numTickets]uint64

func (v *Versions) Bump(t Ticket) { v[t]++ }

// BumpState bumps both kinematic dimensions, for writes that replace the
// full state.
func (v *Versions) BumpState() {
	v[Configuration]++
	v[Velocity]++
}

type entry struct {
	value any
	deps  []Ticket
	seen  Versions
	valid bool
}

// Store holds the cached artifacts of one context. Values are owned by the
// store and returned by reference; callers must not retain them across
// state writes.
type Store struct {
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Invalidate drops every entry unconditionally.
func (s *Store) Invalidate() {
	for _, e := range s.entries {
		e.valid = false
	}
}

func (e *entry) current(v *Versions) bool {
	if !e.valid {
		return false
	}
	for _, d := range e.deps {
		if e.seen[d] != v[d] {
			return false
		}
	}
	return true
}

// Eval returns the cached value for name, recomputing via calc when any
// declared dependency changed since the last computation. The calc result
// is stored even if a later read fails elsewhere; errors are not cached.
func Eval[T any](s *Store, v *Versions, name string, deps []Ticket, calc func() (T, error)) (T, error) {
	e, ok := s.entries[name]
	if ok && e.current(v) {
		val, cast := e.value.(T)
		if !cast {
			var zero T
			return zero, fmt.Errorf("cache: entry %q holds %T, not the requested type", name, e.value)
		}
		return val, nil
	}

	val, err := calc()
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		e = &entry{}
		s.entries[name] = e
	}
	e.value = val
	e.deps = deps
	e.seen = *v
	e.valid = true
	return val, nil
}
