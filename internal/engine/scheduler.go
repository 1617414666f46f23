package engine

import (
	"context"
	"time"
)

// Event is one of the three lifecycle signals the controller consumes.
type Event int

const (
	EventHidden Event = iota
	EventVisible
	EventPageHide
)

// Scheduler owns the single repeating heartbeat timer and the lifecycle
// subscription for one session context. It is constructed when a session
// context begins and torn down with Stop, so no timer or subscription leaks
// across re-creation.
type Scheduler struct {
	ctrl     *Controller
	events   <-chan Event
	onCounts func(Counts)
	done     chan struct{}
}

// NewScheduler wires a controller to a lifecycle event source. onCounts is
// invoked after every tick with the counts to display; it may be nil.
func NewScheduler(ctrl *Controller, events <-chan Event, onCounts func(Counts)) *Scheduler {
	return &Scheduler{
		ctrl:     ctrl,
		events:   events,
		onCounts: onCounts,
		done:     make(chan struct{}),
	}
}

// Run ticks immediately, then every HeartbeatInterval, interleaving
// lifecycle events as they arrive, until ctx is cancelled or Stop is called.
// A visibility event arriving between ticks is applied before the next tick
// reads state, so a tick never acts on a stale visibility value.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop ends the loop. Safe to call once; the caller decides whether the
// session itself ends (EndExplicit) or merely checkpoints (OnPageHide).
func (s *Scheduler) Stop() {
	close(s.done)
}

func (s *Scheduler) tick(ctx context.Context) {
	counts := s.ctrl.Tick(ctx)
	if s.onCounts != nil {
		s.onCounts(counts)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) {
	switch ev {
	case EventHidden:
		s.ctrl.OnVisibilityHidden()
	case EventVisible:
		s.ctrl.OnVisibilityVisible(ctx)
	case EventPageHide:
		s.ctrl.OnPageHide()
	}
}
