// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vcompose/internal/fsm"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/metrics"
)

// State is the lifecycle state of one pipeline.
type State string

const (
	StateIdle      State = "idle"
	StateBuilding  State = "building"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Event drives a pipeline state machine.
type Event string

const (
	EventStart   Event = "start"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
	EventCancel  Event = "cancel"
	EventReset   Event = "reset"
)

var pipelineTransitions = []fsm.Transition[State, Event]{
	{From: StateIdle, Event: EventStart, To: StateBuilding},
	{From: StateBuilding, Event: EventSucceed, To: StateSucceeded},
	{From: StateBuilding, Event: EventFail, To: StateFailed},
	{From: StateBuilding, Event: EventCancel, To: StateIdle},
	{From: StateSucceeded, Event: EventReset, To: StateIdle},
	{From: StateFailed, Event: EventReset, To: StateIdle},
}

// pipeline wraps the state machine of the preview or export pipeline.
type pipeline struct {
	name   string
	logger zerolog.Logger
	m      *fsm.Machine[State, Event]
}

func newPipeline(name string, logger zerolog.Logger) *pipeline {
	p := &pipeline{name: name, logger: logger}
	transitions := make([]fsm.Transition[State, Event], len(pipelineTransitions))
	for i, t := range pipelineTransitions {
		t.Action = p.logTransition
		transitions[i] = t
	}
	p.m = fsm.MustNew(StateIdle, transitions)
	p.m.Observe(func(from, to State, _ Event) {
		metrics.ObserveTransition(name, string(from), string(to))
	})
	return p
}

func (p *pipeline) logTransition(ctx context.Context, from, to State, ev Event) error {
	logger := xlog.WithContext(ctx, p.logger)
	logger.Debug().
		Str(xlog.FieldEvent, "pipeline.transition").
		Str("pipeline", p.name).
		Str(xlog.FieldOldState, string(from)).
		Str(xlog.FieldNewState, string(to)).
		Str("trigger", string(ev)).
		Msg("pipeline state changed")
	return nil
}

func (p *pipeline) state() State { return p.m.State() }

// begin moves a finished pipeline back through Idle into Building.
// A pipeline already Building stays there; the newer build takes it over.
func (p *pipeline) begin(ctx context.Context) {
	if p.m.Can(EventReset) {
		_, _ = p.m.Fire(ctx, EventReset)
	}
	if p.m.Can(EventStart) {
		_, _ = p.m.Fire(ctx, EventStart)
	}
}

func (p *pipeline) fire(ctx context.Context, ev Event) {
	if p.m.Can(ev) {
		_, _ = p.m.Fire(ctx, ev)
	}
}
