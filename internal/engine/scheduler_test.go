package engine

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerTicksImmediatelyAndDispatchesEvents(t *testing.T) {
	ctrl, fb, store, _ := newTestController(t)

	events := make(chan Event)
	counts := make(chan Counts, 16)
	sched := NewScheduler(ctrl, events, func(c Counts) { counts <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	select {
	case c := <-counts:
		if c.Active != 3 || c.Total != 42 {
			t.Errorf("first tick counts = %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate tick")
	}
	if got := fb.countCalls("startSession"); got != 1 {
		t.Errorf("startSession calls = %d, want 1", got)
	}

	select {
	case events <- EventHidden:
	case <-time.After(2 * time.Second):
		t.Fatal("event not consumed")
	}
	sched.Stop()

	// The hidden transition was applied before shutdown.
	deadline := time.Now().Add(2 * time.Second)
	for {
		cp := store.SessionCheckpoint()
		if cp != nil && !cp.WasPageVisible {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hidden transition never checkpointed: %+v", cp)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
