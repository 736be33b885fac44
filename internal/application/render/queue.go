// Package render serializes full view rebuilds for one browser session.
//
// A session asks for a render whenever its route, auth state or the underlying data may have
// changed. Renders never overlap. Requests that arrive while a render is running collapse into
// a single follow-up render, which reads the latest state when it starts.
package render

import (
	"context"
	"sync"
	"time"
)

// Phase is the queue's position in its state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseRendering
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	if p == PhaseRendering {
		return "rendering"
	}
	return "idle"
}

// State is a point-in-time view of the queue.
// PendingFollowUp is only ever true while Phase is PhaseRendering.
type State struct {
	Phase           Phase
	PendingFollowUp bool
}

// Func rebuilds and delivers the whole view. It returns the kind of page it produced.
// It must read its inputs when called, never from values captured at request time.
type Func func(ctx context.Context) (kind string, err error)

// Observer receives the duration of every completed render.
type Observer func(kind string, d time.Duration, err error)

// Queue runs at most one render at a time and coalesces requests made during a render.
type Queue struct {
	mu      sync.Mutex
	state   State
	render  Func
	observe Observer
	now     func() time.Time
}

// NewQueue creates an idle queue.
// PRE: render is non-nil
// POST: State() is {PhaseIdle, false}
func NewQueue(render Func, observe Observer) *Queue {
	return &Queue{render: render, observe: observe, now: time.Now}
}

// State returns the current state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Request asks for a render.
// When idle, the caller runs the render itself and then runs one follow-up render if any
// request arrived meanwhile, repeating until no request is pending. When a render is already
// running, the request only marks a follow-up and returns nil immediately.
// POST: Every request is followed by at least one render that starts after it
// INVARIANT: Renders never run concurrently; any number of requests during one render
// produce exactly one follow-up
func (q *Queue) Request(ctx context.Context) error {
	q.mu.Lock()
	if q.state.Phase == PhaseRendering {
		q.state.PendingFollowUp = true
		q.mu.Unlock()
		return nil
	}
	q.state.Phase = PhaseRendering
	q.mu.Unlock()

	var err error
	for {
		err = q.runOnce(ctx)

		q.mu.Lock()
		if !q.state.PendingFollowUp {
			q.state = State{Phase: PhaseIdle}
			q.mu.Unlock()
			return err
		}
		q.state.PendingFollowUp = false
		q.mu.Unlock()
	}
}

func (q *Queue) runOnce(ctx context.Context) error {
	start := q.now()
	kind, err := q.render(ctx)
	if q.observe != nil {
		q.observe(kind, q.now().Sub(start), err)
	}
	return err
}
