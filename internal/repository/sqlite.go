package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"stillmind/internal/model"
)

// OpenSQLite opens (creating if needed) the relational store at dbPath and
// ensures the schema. Timestamps are stored as unix seconds.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  total_seconds INTEGER NOT NULL DEFAULT 0,
  sessions_count INTEGER NOT NULL DEFAULT 0,
  last_seen_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  ended_at INTEGER,
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_users_total ON users (total_seconds DESC);
CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users (last_seen_at);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

type sqliteUserRepo struct {
	db *sql.DB
}

// NewSQLiteUserRepo creates the relational UserRepo.
func NewSQLiteUserRepo(db *sql.DB) UserRepo {
	return &sqliteUserRepo{db: db}
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, total_seconds, sessions_count, last_seen_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.DisplayName, user.TotalSeconds, user.SessionsCount,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix())
	return err
}

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	var lastSeen, created int64
	if err := row.Scan(&u.ID, &u.DisplayName, &u.TotalSeconds, &u.SessionsCount, &lastSeen, &created); err != nil {
		return nil, err
	}
	u.LastSeenAt = time.Unix(lastSeen, 0).UTC()
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

const userColumns = `id, display_name, total_seconds, sessions_count, last_seen_at, created_at`

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *sqliteUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	users := make(map[string]*model.User)
	// Small N (a leaderboard page); a query per id keeps the SQL simple.
	for _, id := range ids {
		u, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users[u.ID] = u
		}
	}
	return users, nil
}

func (r *sqliteUserRepo) SetDisplayName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE id = ?`, name, id)
	return err
}

func (r *sqliteUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen_at = ? WHERE id = ?`, at.Unix(), id)
	return err
}

func (r *sqliteUserRepo) IncrementStats(ctx context.Context, id string, delta model.StatsDelta, at time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET total_seconds = total_seconds + ?, sessions_count = sessions_count + ? WHERE id = ?`,
		delta.SecondsDelta, delta.SessionDelta, id)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("user %s not found", id)
	}
	if delta.TouchLastSeen {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET last_seen_at = ? WHERE id = ?`, at.Unix(), id); err != nil {
			return 0, err
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT total_seconds FROM users WHERE id = ?`, id).Scan(&total); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *sqliteUserRepo) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE last_seen_at >= ?`, since.Unix()).Scan(&n)
	return n, err
}

func (r *sqliteUserRepo) CountWithGreaterTotal(ctx context.Context, seconds int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE total_seconds > ?`, seconds).Scan(&n)
	return n, err
}

func (r *sqliteUserRepo) TopByTotalSeconds(ctx context.Context, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY total_seconds DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type sqliteSessionRepo struct {
	db *sql.DB
}

// NewSQLiteSessionRepo creates the relational SessionRepo.
func NewSQLiteSessionRepo(db *sql.DB) SessionRepo {
	return &sqliteSessionRepo{db: db}
}

func (r *sqliteSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, started_at, ended_at, duration_seconds, is_active)
		 VALUES (?, ?, ?, NULL, 0, 1)`,
		session.ID, session.UserID, session.StartedAt.Unix())
	return err
}

func (r *sqliteSessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, started_at, ended_at, duration_seconds, is_active FROM sessions WHERE id = ?`, id)

	var s model.Session
	var started int64
	var ended sql.NullInt64
	var active int
	if err := row.Scan(&s.ID, &s.UserID, &started, &ended, &s.DurationSeconds, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.StartedAt = time.Unix(started, 0).UTC()
	if ended.Valid {
		t := time.Unix(ended.Int64, 0).UTC()
		s.EndedAt = &t
	}
	s.IsActive = active == 1
	return &s, nil
}

func (r *sqliteSessionRepo) Close(ctx context.Context, id string, durationSeconds int, endedAt time.Time) error {
	// is_active = 1 in the predicate makes a repeated close a no-op.
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, duration_seconds = ?, is_active = 0 WHERE id = ? AND is_active = 1`,
		endedAt.Unix(), durationSeconds, id)
	return err
}
