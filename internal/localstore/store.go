package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stillmind/internal/model"
)

// ErrNotFound is returned when a record has never been written.
var ErrNotFound = errors.New("localstore: not found")

// File names inside the data directory. Checkpoint and orphan are singular
// slots: saving overwrites whatever was there.
const (
	identityFile   = "identity.json"
	settingsFile   = "settings.json"
	statsFile      = "stats.json"
	checkpointFile = "checkpoint.json"
	orphanFile     = "orphan.json"
)

// Identity is the locally generated anonymous identity.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Store is the client's durable key-value state. Two processes sharing one
// directory race on these files with no coordination; the files are singular
// slots and the last writer wins.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir resolves the data directory:
// $XDG_DATA_HOME/stillmind or ~/.local/share/stillmind.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "stillmind"), nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// write marshals v and writes it atomically via temp file + os.Rename.
func (s *Store) write(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// read unmarshals the named file into v. Returns ErrNotFound when absent.
func (s *Store) read(name string, v interface{}) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (s *Store) remove(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// Identity returns the stored identity, or ErrNotFound on first run.
func (s *Store) Identity() (*Identity, error) {
	var id Identity
	if err := s.read(identityFile, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) SaveIdentity(id *Identity) error {
	return s.write(identityFile, id)
}

// Settings returns stored preferences, or zero-value defaults when absent.
func (s *Store) Settings() (*model.Settings, error) {
	var st model.Settings
	if err := s.read(settingsFile, &st); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &model.Settings{}, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) SaveSettings(st *model.Settings) error {
	return s.write(settingsFile, st)
}

// LocalStats returns the cached stats, or ErrNotFound when never synced.
func (s *Store) LocalStats() (*model.LocalStats, error) {
	var ls model.LocalStats
	if err := s.read(statsFile, &ls); err != nil {
		return nil, err
	}
	return &ls, nil
}

func (s *Store) SaveLocalStats(ls *model.LocalStats) error {
	return s.write(statsFile, ls)
}

// SessionCheckpoint returns the current checkpoint, or nil when absent.
// A malformed checkpoint is indistinguishable from no checkpoint: corrupted
// local state is discarded, never surfaced.
func (s *Store) SessionCheckpoint() *model.SessionCheckpoint {
	var cp model.SessionCheckpoint
	if err := s.read(checkpointFile, &cp); err != nil {
		return nil
	}
	return &cp
}

func (s *Store) SaveSessionCheckpoint(cp *model.SessionCheckpoint) error {
	return s.write(checkpointFile, cp)
}

func (s *Store) ClearSessionCheckpoint() error {
	return s.remove(checkpointFile)
}

// PendingOrphan returns the orphan awaiting confirmation, or nil. A newly
// saved orphan supersedes any previous one.
func (s *Store) PendingOrphan() *model.PendingOrphanSession {
	var p model.PendingOrphanSession
	if err := s.read(orphanFile, &p); err != nil {
		return nil
	}
	return &p
}

func (s *Store) SavePendingOrphan(p *model.PendingOrphanSession) error {
	return s.write(orphanFile, p)
}

func (s *Store) ClearPendingOrphan() error {
	return s.remove(orphanFile)
}
