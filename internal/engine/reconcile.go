package engine

import (
	"context"
	"log"
	"time"

	"stillmind/internal/model"
)

// ShouldContinue reports whether a checkpoint left by a previous run still
// represents a live session.
//
// The asymmetry is deliberate: a session survives indefinitely as long as the
// client was last known to be in the foreground (locking a phone does not
// reliably produce a hidden transition), but survives actual backgrounding
// only within BackgroundThreshold. A checkpoint written before its own start
// time is corrupt and never continues.
func ShouldContinue(cp *model.SessionCheckpoint, now time.Time) bool {
	if cp == nil {
		return false
	}
	if cp.LastCheckpoint.Before(cp.StartedAt) {
		return false
	}
	if cp.WasPageVisible {
		return true
	}
	if cp.LastHiddenAt != nil && now.Sub(*cp.LastHiddenAt) <= BackgroundThreshold {
		return true
	}
	return false
}

// ReconcileStartup resolves whatever the previous run left behind, before
// the first tick. Exactly one of three things happens to a leftover
// checkpoint:
//
//   - it still represents a live session and is resumed with its original
//     id and start time;
//   - its implied duration is short (or nonsensical) and it is discarded
//     silently;
//   - its implied duration reaches OrphanConfirmThreshold and it becomes a
//     pending orphan that the user must confirm or deny.
//
// The checkpoint itself is cleared in the non-resume cases so it is never
// evaluated twice. The returned orphan, if any, is what the caller should
// surface; it may also be a leftover from an earlier run that was never
// answered.
func (c *Controller) ReconcileStartup() (resumed bool, pending *model.PendingOrphanSession) {
	cp := c.store.SessionCheckpoint()
	if cp == nil {
		return false, c.store.PendingOrphan()
	}

	now := c.now()
	if ShouldContinue(cp, now) {
		c.mu.Lock()
		c.session = &activeSession{id: cp.SessionID, startedAt: cp.StartedAt}
		c.visible = true
		c.lastHiddenAt = nil
		c.writeCheckpointLocked()
		c.mu.Unlock()
		return true, c.store.PendingOrphan()
	}

	if err := c.store.ClearSessionCheckpoint(); err != nil {
		log.Printf("clear checkpoint: %v", err)
	}

	// The session effectively ended when backgrounding began; fall back to
	// the last write for checkpoints that never recorded a hidden
	// transition.
	endedAt := cp.LastCheckpoint
	if cp.LastHiddenAt != nil {
		endedAt = *cp.LastHiddenAt
	}
	implied := int(endedAt.Sub(cp.StartedAt).Seconds())

	if implied <= 0 {
		// Clock skew or corrupted state; discard silently.
		return false, c.store.PendingOrphan()
	}
	if time.Duration(implied)*time.Second < OrphanConfirmThreshold {
		// Short orphans are incidental refreshes, not meditation time.
		return false, c.store.PendingOrphan()
	}

	p := &model.PendingOrphanSession{
		SessionID:       cp.SessionID,
		UserID:          cp.UserID,
		StartedAt:       cp.StartedAt,
		EndedAt:         endedAt,
		DurationSeconds: implied,
	}
	if err := c.store.SavePendingOrphan(p); err != nil {
		log.Printf("save pending orphan: %v", err)
		return false, nil
	}
	return false, p
}

// ConfirmPendingOrphan commits the awaiting orphan to the backend and
// removes it. The pending record survives a failed commit so the user can
// be asked again on the next run.
//
// Stats are applied without touching last-seen: the orphan is historical
// time, not current presence.
func (c *Controller) ConfirmPendingOrphan(ctx context.Context) error {
	p := c.store.PendingOrphan()
	if p == nil {
		return nil
	}
	if err := c.backend.EndSession(ctx, p.SessionID, p.DurationSeconds, p.EndedAt); err != nil {
		return err
	}
	delta := model.StatsDelta{SecondsDelta: p.DurationSeconds, SessionDelta: 1}
	if err := c.backend.IncrementUserStats(ctx, p.UserID, delta); err != nil {
		return err
	}
	return c.store.ClearPendingOrphan()
}

// DiscardPendingOrphan drops the awaiting orphan without counting it.
func (c *Controller) DiscardPendingOrphan() error {
	return c.store.ClearPendingOrphan()
}
