package model

// PresenceCounts is the pair of counters returned by every heartbeat:
// users seen within the active window, and all-time distinct users.
type PresenceCounts struct {
	ActiveCount int `json:"activeCount"`
	TotalCount  int `json:"totalCount"`
}

// LeaderboardEntry is a single row of the lifetime leaderboard.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"userId"`
	DisplayName   string  `json:"displayName"`
	TotalHours    float64 `json:"totalHours"`
	IsCurrentUser bool    `json:"isCurrentUser"`
}

// LeaderboardPage is the top-N slice plus the requesting user's own rank,
// which may fall outside the page.
type LeaderboardPage struct {
	Entries         []LeaderboardEntry `json:"entries"`
	CurrentUserRank int                `json:"currentUserRank,omitempty"`
}

// InitUserRequest creates-or-fetches a user. A non-empty display name also
// renames an existing user.
type InitUserRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

// StartSessionRequest opens a new session for a user.
type StartSessionRequest struct {
	UserID string `json:"userId"`
}

// StartSessionResponse carries the backend-assigned session id.
type StartSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// EndSessionRequest closes a session. EndedAt is optional; the server uses
// its own clock when absent.
type EndSessionRequest struct {
	DurationSeconds int    `json:"durationSeconds"`
	EndedAt         string `json:"endedAt,omitempty"` // RFC3339
}
