package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"stillmind/internal/backend"
	"stillmind/internal/localstore"
	"stillmind/internal/model"
)

// Timing constants. These are contract values, not tunables.
const (
	// HeartbeatInterval is how often Tick fires while the client is open.
	HeartbeatInterval = 10 * time.Second

	// ActiveWindow classifies a user as active when their last heartbeat
	// is within it.
	ActiveWindow = 30 * time.Second

	// BackgroundThreshold is how long a session survives actual
	// backgrounding before it is force-ended as of the moment
	// backgrounding began.
	BackgroundThreshold = 120 * time.Second

	// OrphanConfirmThreshold is the implied duration above which an
	// orphaned session requires explicit user confirmation.
	OrphanConfirmThreshold = 3600 * time.Second
)

// Counts is what the client displays each tick. Placeholder is set until the
// first successful fetch; after that, failures silently fall back to the
// self-only 1/1 pair.
type Counts struct {
	Active      int
	Total       int
	Placeholder bool
	Degraded    bool
}

// activeSession is the in-memory reference to the one open session.
type activeSession struct {
	id        string
	startedAt time.Time
}

// Controller is the heartbeat state machine. One instance exists per client
// process; it owns the session reference, mirrors it into the local
// checkpoint on every state change, and keeps the backend's aggregates
// eventually consistent.
//
// Ticks and lifecycle events arrive on different goroutines, so the mutable
// state is mutex-guarded. Network calls happen outside the lock; results for
// a session that was superseded mid-flight are dropped by id comparison.
type Controller struct {
	backend backend.PresenceBackend
	store   *localstore.Store
	userID  string
	now     func() time.Time

	mu           sync.Mutex
	session      *activeSession
	visible      bool
	lastHiddenAt *time.Time
	haveCounts   bool
	lastCounts   model.PresenceCounts
}

// New returns a Controller for the given user. The client is assumed to be
// in the foreground when it starts.
func New(b backend.PresenceBackend, store *localstore.Store, userID string) *Controller {
	return &Controller{
		backend: b,
		store:   store,
		userID:  userID,
		now:     time.Now,
		visible: true,
	}
}

// Tick runs one heartbeat: it opens a session if none is held, reports
// liveness, writes a fresh checkpoint, and returns the live counts. Network
// failure never stops the loop; the checkpoint is written regardless so no
// elapsed time is lost, and counts degrade per Counts.
func (c *Controller) Tick(ctx context.Context) Counts {
	c.mu.Lock()
	if c.session != nil {
		// Checkpoint before any network call, so a teardown mid-tick
		// at worst leaves an orphan rather than losing time.
		c.writeCheckpointLocked()
	}
	needStart := c.session == nil
	c.mu.Unlock()

	if needStart {
		id, err := c.backend.StartSession(ctx, c.userID)
		c.mu.Lock()
		if err != nil {
			log.Printf("start session: %v", err)
		} else if c.session == nil {
			c.session = &activeSession{id: id, startedAt: c.now()}
			c.writeCheckpointLocked()
		}
		// If a session appeared meanwhile, the freshly created one is
		// simply abandoned; it closes as a zero-length orphan.
		c.mu.Unlock()
	}

	counts, err := c.backend.ReportHeartbeat(ctx, c.userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !c.haveCounts {
			return Counts{Placeholder: true}
		}
		return Counts{Active: 1, Total: 1, Degraded: true}
	}
	c.haveCounts = true
	c.lastCounts = *counts
	return Counts{Active: counts.ActiveCount, Total: counts.TotalCount}
}

// EndExplicit closes the current session on user request. Calling it with no
// session held is a no-op, so a double "end" is harmless.
func (c *Controller) EndExplicit(ctx context.Context) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	sess := c.session
	c.session = nil
	c.lastHiddenAt = nil
	endedAt := c.now()
	c.mu.Unlock()

	duration := int(endedAt.Sub(sess.startedAt).Seconds())
	c.commitSession(ctx, sess.id, duration, endedAt, true)
}

// OnVisibilityHidden records when backgrounding began and checkpoints.
// It must stay cheap and synchronous: the platform may tear the process
// down right after delivering the event, so no network is attempted.
func (c *Controller) OnVisibilityHidden() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.visible = false
	c.lastHiddenAt = &now
	if c.session != nil {
		c.writeCheckpointLocked()
	}
}

// OnVisibilityVisible decides whether the session survived backgrounding.
// Within the threshold it continues uninterrupted; beyond it, the session is
// force-ended as of the moment backgrounding began, not the moment of
// return, and a new session starts on the next tick.
func (c *Controller) OnVisibilityVisible(ctx context.Context) {
	c.mu.Lock()
	c.visible = true
	hidden := c.lastHiddenAt
	c.lastHiddenAt = nil

	if c.session == nil || hidden == nil {
		c.mu.Unlock()
		return
	}
	if c.now().Sub(*hidden) <= BackgroundThreshold {
		c.writeCheckpointLocked()
		c.mu.Unlock()
		return
	}

	sess := c.session
	c.session = nil
	c.mu.Unlock()

	duration := int(hidden.Sub(sess.startedAt).Seconds())
	c.commitSession(ctx, sess.id, duration, *hidden, true)
}

// OnPageHide is the unload path: a best-effort synchronous checkpoint write
// only. No network call is guaranteed to complete here, so none is made;
// the checkpoint is what the next run reconciles from.
func (c *Controller) OnPageHide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.writeCheckpointLocked()
	}
}

// Elapsed returns the current session's elapsed time, or false if none.
func (c *Controller) Elapsed() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.now().Sub(c.session.startedAt), true
}

// commitSession closes a session server-side and, for positive durations,
// folds it into the user's lifetime statistics. Errors are logged and
// swallowed: closure is best-effort and the contract is idempotent.
func (c *Controller) commitSession(ctx context.Context, sessionID string, duration int, endedAt time.Time, touchLastSeen bool) {
	if err := c.backend.EndSession(ctx, sessionID, duration, endedAt); err != nil {
		log.Printf("end session %s: %v", sessionID, err)
	}
	if duration > 0 {
		delta := model.StatsDelta{SecondsDelta: duration, SessionDelta: 1, TouchLastSeen: touchLastSeen}
		if err := c.backend.IncrementUserStats(ctx, c.userID, delta); err != nil {
			log.Printf("increment stats: %v", err)
		}
	}
	if err := c.store.ClearSessionCheckpoint(); err != nil {
		log.Printf("clear checkpoint: %v", err)
	}
}

// writeCheckpointLocked mirrors the in-memory session into the local store.
// Callers hold c.mu. Store failures are logged, never fatal.
func (c *Controller) writeCheckpointLocked() {
	now := c.now()
	cp := &model.SessionCheckpoint{
		SessionID:      c.session.id,
		UserID:         c.userID,
		StartedAt:      c.session.startedAt,
		LastCheckpoint: now,
		ElapsedSeconds: int(now.Sub(c.session.startedAt).Seconds()),
		WasPageVisible: c.visible,
		LastHiddenAt:   c.lastHiddenAt,
	}
	if err := c.store.SaveSessionCheckpoint(cp); err != nil {
		log.Printf("save checkpoint: %v", err)
	}
}
