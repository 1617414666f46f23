package model

import "time"

// User represents one anonymous participant. Identity is generated once per
// client and persisted locally; there is no account or login.
type User struct {
	ID            string    `json:"id" bson:"_id,omitempty"`
	DisplayName   string    `json:"displayName" bson:"displayName"`
	TotalSeconds  int       `json:"totalSeconds" bson:"totalSeconds"`
	SessionsCount int       `json:"sessionsCount" bson:"sessionsCount"`
	LastSeenAt    time.Time `json:"lastSeenAt" bson:"lastSeenAt"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// StatsDelta is applied to a user's lifetime statistics when a session closes
// with positive duration.
type StatsDelta struct {
	SecondsDelta  int  `json:"secondsDelta"`
	SessionDelta  int  `json:"sessionDelta"`
	TouchLastSeen bool `json:"touchLastSeen"`
}

// LocalStats is the client-side cache of the user's confirmed statistics,
// shown even when the backend is unreachable.
type LocalStats struct {
	TotalSeconds  int       `json:"totalSeconds"`
	SessionsCount int       `json:"sessionsCount"`
	Rank          int       `json:"rank,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Settings is the client preferences blob. Audio playback itself is outside
// this module; the choice is only persisted and round-tripped.
type Settings struct {
	AmbientSound string `json:"ambientSound,omitempty"`
	GoalMinutes  int    `json:"goalMinutes,omitempty"`
}
