// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small strict finite state machine. Unknown transitions
// are errors.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned when no edge leaves the current state
	// for the fired event.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConcurrentTransition is returned when another Fire moved the state
	// while a guard or action was running.
	ErrConcurrentTransition = errors.New("concurrent transition")
)

// Transition describes a single edge. Guard may reject the transition;
// Action runs side effects before the state changes.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from S, to S, event E) error
}

type edge[S ~string, E ~string] struct {
	from  S
	event E
}

// Machine runs a set of transitions.
type Machine[S ~string, E ~string] struct {
	mu       sync.Mutex
	state    S
	index    map[edge[S, E]]Transition[S, E]
	observer func(from, to S, event E)
}

// New builds a Machine starting in initial. Duplicate edges are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[edge[S, E]]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := edge[S, E]{t.From, t.Event}
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static transition tables.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

// Observe registers fn to run after every applied transition.
func (m *Machine[S, E]) Observe(fn func(from, to S, event E)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is accepted in the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[edge[S, E]{m.state, event}]
	return ok
}

// Fire applies event. Guard and Action run outside the lock.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[edge[S, E]{from, event}]
	m.mu.Unlock()
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}

	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, from, t.To, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("%w: from=%s cur=%s event=%s", ErrConcurrentTransition, from, cur, event)
	}
	m.state = t.To
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, t.To, event)
	}
	return t.To, nil
}
