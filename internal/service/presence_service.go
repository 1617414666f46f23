package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stillmind/internal/cache"
	"stillmind/internal/model"
	"stillmind/internal/namegen"
	"stillmind/internal/repository"
)

// activeWindow classifies a user as currently meditating when their last
// heartbeat falls within it.
const activeWindow = 30 * time.Second

const defaultLeaderboardLimit = 10

// PresenceService implements the presence/stats contract over a durable
// store (Mongo or SQLite, chosen at startup) and the Redis hot path.
type PresenceService struct {
	users       repository.UserRepo
	sessions    repository.SessionRepo
	presence    cache.PresenceCache
	leaderboard cache.LeaderboardCache
	broadcaster Broadcaster
	now         func() time.Time

	mu        sync.Mutex
	lastBcast model.PresenceCounts
}

// NewPresenceService creates a new presence service
func NewPresenceService(
	users repository.UserRepo,
	sessions repository.SessionRepo,
	presence cache.PresenceCache,
	leaderboard cache.LeaderboardCache,
) *PresenceService {
	return &PresenceService{
		users:       users,
		sessions:    sessions,
		presence:    presence,
		leaderboard: leaderboard,
		now:         time.Now,
	}
}

// SetBroadcaster sets the broadcaster for live count pushes
func (s *PresenceService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// InitUser is an idempotent create-or-fetch. A non-empty display name also
// renames an existing user; an empty one on first contact gets a generated
// anonymous name.
func (s *PresenceService) InitUser(ctx context.Context, userID, displayName string) (*model.User, error) {
	if userID == "" {
		userID = "u_" + uuid.New().String()[:8]
	}

	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if existing != nil {
		if displayName != "" && displayName != existing.DisplayName {
			if err := s.users.SetDisplayName(ctx, userID, displayName); err != nil {
				return nil, fmt.Errorf("failed to rename user: %w", err)
			}
			existing.DisplayName = displayName
		}
		return existing, nil
	}

	if displayName == "" {
		displayName = namegen.Generate()
	}
	now := s.now()
	user := &model.User{
		ID:          userID,
		DisplayName: displayName,
		LastSeenAt:  now,
		CreatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.leaderboard.UpdateScore(ctx, userID, 0); err != nil {
		log.Printf("init leaderboard for %s: %v", userID, err)
	}
	return user, nil
}

// ReportHeartbeat marks the user seen now and returns the live counters.
// The Redis window is the primary source for the active count; the durable
// store answers when Redis is unavailable.
func (s *PresenceService) ReportHeartbeat(ctx context.Context, userID string) (*model.PresenceCounts, error) {
	now := s.now()
	if err := s.users.TouchLastSeen(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("failed to touch user: %w", err)
	}
	if err := s.presence.Touch(ctx, userID, now.Unix()); err != nil {
		log.Printf("presence touch: %v", err)
	}

	active, err := s.presence.ActiveCount(ctx, now.Add(-activeWindow).Unix())
	if err != nil {
		active, err = s.users.CountActiveSince(ctx, now.Add(-activeWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to count active users: %w", err)
		}
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	counts := &model.PresenceCounts{ActiveCount: active, TotalCount: total}
	s.broadcastIfChanged(*counts)
	return counts, nil
}

func (s *PresenceService) broadcastIfChanged(counts model.PresenceCounts) {
	if s.broadcaster == nil {
		return
	}
	s.mu.Lock()
	changed := counts != s.lastBcast
	if changed {
		s.lastBcast = counts
	}
	s.mu.Unlock()
	if changed {
		s.broadcaster.BroadcastCounts(counts)
	}
}

// StartSession opens a new session and returns its id.
func (s *PresenceService) StartSession(ctx context.Context, userID string) (string, error) {
	session := &model.Session{
		ID:        "s_" + uuid.New().String()[:8],
		UserID:    userID,
		StartedAt: s.now(),
		IsActive:  true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return session.ID, nil
}

// EndSession closes a session. Unknown or already-closed sessions are
// accepted silently; clients retry best-effort.
func (s *PresenceService) EndSession(ctx context.Context, sessionID string, durationSeconds int, endedAt time.Time) error {
	if endedAt.IsZero() {
		endedAt = s.now()
	}
	if err := s.sessions.Close(ctx, sessionID, durationSeconds, endedAt); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// IncrementUserStats folds a confirmed session into lifetime totals and
// keeps the leaderboard ZSET in step.
func (s *PresenceService) IncrementUserStats(ctx context.Context, userID string, delta model.StatsDelta) error {
	newTotal, err := s.users.IncrementStats(ctx, userID, delta, s.now())
	if err != nil {
		return fmt.Errorf("failed to increment stats: %w", err)
	}
	if err := s.leaderboard.UpdateScore(ctx, userID, newTotal); err != nil {
		log.Printf("leaderboard update for %s: %v", userID, err)
	}
	return nil
}

// Leaderboard returns the top-N users plus the caller's own rank. A cold or
// failing Redis ZSET falls back to the durable store and is rebuilt from it.
func (s *PresenceService) Leaderboard(ctx context.Context, userID string, limit int) (*model.LeaderboardPage, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	raw, err := s.leaderboard.GetTop(ctx, limit)
	if err != nil || len(raw) == 0 {
		if err != nil {
			log.Printf("leaderboard cache: %v", err)
		}
		return s.leaderboardFromRepo(ctx, userID, limit)
	}

	ids := make([]string, len(raw))
	for i, e := range raw {
		ids[i] = e.UserID
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard users: %w", err)
	}

	page := &model.LeaderboardPage{}
	for _, e := range raw {
		entry := model.LeaderboardEntry{
			Rank:          e.Rank,
			UserID:        e.UserID,
			TotalHours:    float64(e.TotalSeconds) / 3600,
			IsCurrentUser: e.UserID == userID,
		}
		if u, ok := users[e.UserID]; ok {
			entry.DisplayName = u.DisplayName
		}
		page.Entries = append(page.Entries, entry)
	}
	if rank, err := s.UserRank(ctx, userID); err == nil {
		page.CurrentUserRank = rank
	}
	return page, nil
}

func (s *PresenceService) leaderboardFromRepo(ctx context.Context, userID string, limit int) (*model.LeaderboardPage, error) {
	top, err := s.users.TopByTotalSeconds(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	page := &model.LeaderboardPage{}
	for i, u := range top {
		page.Entries = append(page.Entries, model.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        u.ID,
			DisplayName:   u.DisplayName,
			TotalHours:    float64(u.TotalSeconds) / 3600,
			IsCurrentUser: u.ID == userID,
		})
		// Rebuild the ZSET as we go so the next call is served hot.
		if err := s.leaderboard.UpdateScore(ctx, u.ID, u.TotalSeconds); err != nil {
			log.Printf("leaderboard backfill for %s: %v", u.ID, err)
		}
	}
	if rank, err := s.UserRank(ctx, userID); err == nil {
		page.CurrentUserRank = rank
	}
	return page, nil
}

// UserRank is 1-based: the count of users with strictly greater lifetime
// seconds, plus one. The durable store answers; ties share a rank.
func (s *PresenceService) UserRank(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, fmt.Errorf("user not found")
	}
	greater, err := s.users.CountWithGreaterTotal(ctx, user.TotalSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to rank user: %w", err)
	}
	return greater + 1, nil
}
