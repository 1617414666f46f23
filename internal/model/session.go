package model

import "time"

// Session is one continuous interval of presumed meditation, owned by the
// backend. Exactly one session should be active per user at a time; this is
// best-effort only (closure always targets the locally held session id).
type Session struct {
	ID              string     `json:"id" bson:"_id,omitempty"`
	UserID          string     `json:"userId" bson:"userId"`
	StartedAt       time.Time  `json:"startedAt" bson:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds" bson:"durationSeconds"`
	IsActive        bool       `json:"isActive" bson:"isActive"`
}

// SessionCheckpoint is the local mirror of "a session is currently open".
// At most one exists at a time. It is written on every heartbeat tick and on
// every visibility transition, and cleared exactly when the session is
// committed or discarded.
type SessionCheckpoint struct {
	SessionID      string     `json:"sessionId"`
	UserID         string     `json:"userId"`
	StartedAt      time.Time  `json:"startedAt"`
	LastCheckpoint time.Time  `json:"lastCheckpoint"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	WasPageVisible bool       `json:"wasPageVisible"`
	LastHiddenAt   *time.Time `json:"lastHiddenAt,omitempty"`
}

// PendingOrphanSession is a session found at startup whose implied duration
// is long enough that it must not be counted without explicit confirmation.
type PendingOrphanSession struct {
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	DurationSeconds int       `json:"durationSeconds"`
}
