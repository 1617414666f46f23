package repository

import (
	"context"
	"time"

	"stillmind/internal/model"
)

// UserRepo is the durable store of participants and their lifetime
// statistics. Lookups return (nil, nil) when the user does not exist.
type UserRepo interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	SetDisplayName(ctx context.Context, id, name string) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error

	// IncrementStats applies the delta atomically and returns the user's
	// new lifetime total in seconds.
	IncrementStats(ctx context.Context, id string, delta model.StatsDelta, at time.Time) (int, error)

	Count(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)

	// CountWithGreaterTotal backs the rank definition: users with strictly
	// greater totalSeconds.
	CountWithGreaterTotal(ctx context.Context, seconds int) (int, error)
	TopByTotalSeconds(ctx context.Context, limit int) ([]*model.User, error)
}

// SessionRepo is the durable store of meditation sessions.
type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)

	// Close marks a session ended. Closing an already-ended or unknown
	// session is a no-op: clients retry best-effort and must not fail.
	Close(ctx context.Context, id string, durationSeconds int, endedAt time.Time) error
}
