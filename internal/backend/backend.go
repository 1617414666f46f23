package backend

import (
	"context"
	"time"

	"stillmind/internal/model"
)

// PresenceBackend is the aggregate-store contract the heartbeat engine talks
// to. Implementations are chosen by explicit configuration at startup; the
// engine never cares which store sits behind it.
//
// All operations are best-effort from the engine's point of view: a failed
// call is retried naturally by the next tick, never queued.
type PresenceBackend interface {
	// InitUser is an idempotent create-or-fetch. A non-empty displayName
	// also renames an existing user.
	InitUser(ctx context.Context, userID, displayName string) (*model.User, error)

	// ReportHeartbeat marks the user as seen now and returns the live
	// counters.
	ReportHeartbeat(ctx context.Context, userID string) (*model.PresenceCounts, error)

	// StartSession opens a new session and returns its backend-assigned id.
	StartSession(ctx context.Context, userID string) (string, error)

	// EndSession closes a session. Closing an already-ended or unknown
	// session is not an error.
	EndSession(ctx context.Context, sessionID string, durationSeconds int, endedAt time.Time) error

	// IncrementUserStats applies a confirmed session to lifetime totals.
	IncrementUserStats(ctx context.Context, userID string, delta model.StatsDelta) error

	// Leaderboard returns the top-N users plus the caller's own rank.
	Leaderboard(ctx context.Context, userID string, limit int) (*model.LeaderboardPage, error)

	// UserRank returns the 1-based rank: users with strictly greater
	// lifetime seconds, plus one.
	UserRank(ctx context.Context, userID string) (int, error)
}
