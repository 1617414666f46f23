package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"stillmind/internal/cache"
	"stillmind/internal/model"
)

// memUserRepo is an in-memory UserRepo for service tests.
type memUserRepo struct {
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *model.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *memUserRepo) SetDisplayName(ctx context.Context, id, name string) error {
	if u, ok := r.users[id]; ok {
		u.DisplayName = name
	}
	return nil
}

func (r *memUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if u, ok := r.users[id]; ok {
		u.LastSeenAt = at
	}
	return nil
}

func (r *memUserRepo) IncrementStats(ctx context.Context, id string, delta model.StatsDelta, at time.Time) (int, error) {
	u, ok := r.users[id]
	if !ok {
		return 0, nil
	}
	u.TotalSeconds += delta.SecondsDelta
	u.SessionsCount += delta.SessionDelta
	if delta.TouchLastSeen {
		u.LastSeenAt = at
	}
	return u.TotalSeconds, nil
}

func (r *memUserRepo) Count(ctx context.Context) (int, error) {
	return len(r.users), nil
}

func (r *memUserRepo) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	n := 0
	for _, u := range r.users {
		if !u.LastSeenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) CountWithGreaterTotal(ctx context.Context, seconds int) (int, error) {
	n := 0
	for _, u := range r.users {
		if u.TotalSeconds > seconds {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) TopByTotalSeconds(ctx context.Context, limit int) ([]*model.User, error) {
	all := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TotalSeconds > all[j].TotalSeconds })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type memSessionRepo struct {
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *model.Session) error {
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Close(ctx context.Context, id string, durationSeconds int, endedAt time.Time) error {
	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return nil
	}
	s.IsActive = false
	s.DurationSeconds = durationSeconds
	s.EndedAt = &endedAt
	return nil
}

type countingBroadcaster struct {
	calls []model.PresenceCounts
}

func (b *countingBroadcaster) BroadcastCounts(counts model.PresenceCounts) {
	b.calls = append(b.calls, counts)
}

type serviceFixture struct {
	svc      *PresenceService
	users    *memUserRepo
	sessions *memSessionRepo
	redis    *miniredis.Miniredis
	now      time.Time
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := &serviceFixture{
		users:    newMemUserRepo(),
		sessions: newMemSessionRepo(),
		redis:    mr,
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewPresenceService(f.users, f.sessions, cache.NewPresenceCache(client), cache.NewLeaderboardCache(client))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestInitUserCreatesAnonymous(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.InitUser(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u.ID, "u_") || len(u.ID) != 10 {
		t.Errorf("generated id = %q", u.ID)
	}
	if u.DisplayName == "" {
		t.Error("anonymous user should get a generated display name")
	}
	if _, ok := f.users.users[u.ID]; !ok {
		t.Error("user not persisted")
	}
}

func TestInitUserIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.InitUser(ctx, "u_fixed123", "Calm Otter")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.InitUser(ctx, "u_fixed123", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || second.DisplayName != "Calm Otter" {
		t.Errorf("second init = %+v, want the existing user untouched", second)
	}
	if n, _ := f.users.Count(ctx); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}

func TestInitUserRenames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.InitUser(ctx, "u_fixed123", "Calm Otter"); err != nil {
		t.Fatal(err)
	}
	renamed, err := f.svc.InitUser(ctx, "u_fixed123", "Quiet Heron")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.DisplayName != "Quiet Heron" {
		t.Errorf("display name = %q", renamed.DisplayName)
	}
	if f.users.users["u_fixed123"].DisplayName != "Quiet Heron" {
		t.Error("rename not persisted")
	}
}

func TestReportHeartbeatCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"u_one", "u_two", "u_three"} {
		if _, err := f.svc.InitUser(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
	}

	// u_one and u_two heartbeat now, u_three last seen long ago.
	counts, err := f.svc.ReportHeartbeat(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ReportHeartbeat(ctx, "u_two"); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(20 * time.Second)
	counts, err = f.svc.ReportHeartbeat(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if counts.ActiveCount != 2 {
		t.Errorf("active = %d, want 2", counts.ActiveCount)
	}
	if counts.TotalCount != 3 {
		t.Errorf("total = %d, want 3", counts.TotalCount)
	}

	// 40s later u_two has fallen out of the 30s window.
	f.now = f.now.Add(40 * time.Second)
	counts, err = f.svc.ReportHeartbeat(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if counts.ActiveCount != 1 {
		t.Errorf("active = %d, want 1 after the window passed", counts.ActiveCount)
	}
}

func TestReportHeartbeatFallsBackToRepo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.InitUser(ctx, "u_one", ""); err != nil {
		t.Fatal(err)
	}

	// With Redis gone the durable store still answers.
	f.redis.Close()
	counts, err := f.svc.ReportHeartbeat(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if counts.ActiveCount != 1 || counts.TotalCount != 1 {
		t.Errorf("counts = %+v, want 1/1 from the repo fallback", counts)
	}
}

func TestBroadcastOnlyOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := &countingBroadcaster{}
	f.svc.SetBroadcaster(b)

	if _, err := f.svc.InitUser(ctx, "u_one", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ReportHeartbeat(ctx, "u_one"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ReportHeartbeat(ctx, "u_one"); err != nil {
		t.Fatal(err)
	}

	if len(b.calls) != 1 {
		t.Errorf("broadcasts = %d, want 1 for identical counts", len(b.calls))
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.StartSession(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "s_") {
		t.Errorf("session id = %q", id)
	}
	sess, _ := f.sessions.GetByID(ctx, id)
	if sess == nil || !sess.IsActive {
		t.Fatalf("session after start = %+v", sess)
	}

	endedAt := f.now.Add(30 * time.Minute)
	if err := f.svc.EndSession(ctx, id, 1800, endedAt); err != nil {
		t.Fatal(err)
	}
	sess, _ = f.sessions.GetByID(ctx, id)
	if sess.IsActive || sess.DurationSeconds != 1800 || !sess.EndedAt.Equal(endedAt) {
		t.Errorf("session after end = %+v", sess)
	}

	// Ending again, or ending an unknown id, must not fail.
	if err := f.svc.EndSession(ctx, id, 1800, endedAt); err != nil {
		t.Errorf("double end: %v", err)
	}
	if err := f.svc.EndSession(ctx, "s_missing", 60, endedAt); err != nil {
		t.Errorf("unknown end: %v", err)
	}
}

func TestEndSessionDefaultsToServerClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.StartSession(ctx, "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.EndSession(ctx, id, 600, time.Time{}); err != nil {
		t.Fatal(err)
	}
	sess, _ := f.sessions.GetByID(ctx, id)
	if sess.EndedAt == nil || !sess.EndedAt.Equal(f.now) {
		t.Errorf("endedAt = %v, want the service clock %v", sess.EndedAt, f.now)
	}
}

func TestIncrementUserStatsUpdatesLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.InitUser(ctx, "u_one", ""); err != nil {
		t.Fatal(err)
	}
	delta := model.StatsDelta{SecondsDelta: 1800, SessionDelta: 1, TouchLastSeen: true}
	if err := f.svc.IncrementUserStats(ctx, "u_one", delta); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.IncrementUserStats(ctx, "u_one", delta); err != nil {
		t.Fatal(err)
	}

	u := f.users.users["u_one"]
	if u.TotalSeconds != 3600 || u.SessionsCount != 2 {
		t.Errorf("user stats = %d/%d, want 3600/2", u.TotalSeconds, u.SessionsCount)
	}

	score, err := f.redis.ZScore("lb:total", "u_one")
	if err != nil {
		t.Fatal(err)
	}
	if int(score) != 3600 {
		t.Errorf("leaderboard score = %v, want 3600", score)
	}
}

func TestLeaderboardHotPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for id, secs := range map[string]int{"u_one": 7200, "u_two": 3600, "u_three": 600} {
		if _, err := f.svc.InitUser(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
		if err := f.svc.IncrementUserStats(ctx, id, model.StatsDelta{SecondsDelta: secs, SessionDelta: 1}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := f.svc.Leaderboard(ctx, "u_two", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(page.Entries))
	}
	if page.Entries[0].UserID != "u_one" || page.Entries[0].Rank != 1 || page.Entries[0].TotalHours != 2 {
		t.Errorf("entries[0] = %+v", page.Entries[0])
	}
	if page.Entries[0].DisplayName == "" {
		t.Error("display names should be joined in")
	}
	if !page.Entries[1].IsCurrentUser {
		t.Error("current-user marker missing")
	}
	if page.CurrentUserRank != 2 {
		t.Errorf("currentUserRank = %d, want 2", page.CurrentUserRank)
	}
}

func TestLeaderboardColdCacheBackfills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for id, secs := range map[string]int{"u_one": 7200, "u_two": 3600} {
		if _, err := f.svc.InitUser(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
		f.users.users[id].TotalSeconds = secs
	}
	// Simulate a Redis restart: the durable store knows totals, the ZSET
	// does not.
	f.redis.FlushAll()

	page, err := f.svc.Leaderboard(ctx, "u_one", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 2 || page.Entries[0].UserID != "u_one" {
		t.Fatalf("page = %+v", page)
	}

	// The fallback rebuilt the ZSET.
	score, err := f.redis.ZScore("lb:total", "u_two")
	if err != nil {
		t.Fatal(err)
	}
	if int(score) != 3600 {
		t.Errorf("backfilled score = %v, want 3600", score)
	}
}

func TestUserRankTiesShareRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	totals := map[string]int{"u_a": 5000, "u_b": 3000, "u_c": 3000, "u_d": 100}
	for id, secs := range totals {
		if _, err := f.svc.InitUser(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
		f.users.users[id].TotalSeconds = secs
	}

	for id, want := range map[string]int{"u_a": 1, "u_b": 2, "u_c": 2, "u_d": 4} {
		rank, err := f.svc.UserRank(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if rank != want {
			t.Errorf("rank(%s) = %d, want %d", id, rank, want)
		}
	}
}

func TestUserRankUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.UserRank(context.Background(), "u_missing"); err == nil {
		t.Fatal("expected an error for an unknown user")
	}
}
