// SPDX-License-Identifier: MPL-2.0

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"

	"github.com/charmbracelet/log"
)

const (
	// FileName is the primary state file name inside the state directory.
	FileName = "state.json"
	// BackupSuffix is appended to the primary path for the backup generation.
	BackupSuffix = ".bak"

	tmpSuffix = ".tmp"
)

// ErrCorruptState is returned when a state file exists but neither the
// primary nor the backup can be parsed.
var ErrCorruptState = errors.New("sync state is corrupt")

type (
	// State is the snapshot of the last successful sync.
	State struct {
		Detected string `json:"detected"`
		Active   string `json:"active"`
		LastSync string `json:"last_sync"`
	}

	// Option configures a Store.
	Option func(*Store)

	// Store persists State with exactly one backup generation. It does no
	// locking; concurrent writers race and the last rename wins.
	Store struct {
		path   string
		now    func() time.Time
		logger *log.Logger
	}

	// Snapshot is the raw bytes of the state as found on disk.
	Snapshot struct {
		Path     string
		Data     []byte
		IsBackup bool
	}
)

// WithClock sets the time source used for last_sync.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store whose primary file is dir/state.json.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		path:   filepath.Join(dir, FileName),
		now:    time.Now,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the primary state file path.
func (s *Store) Path() string { return s.path }

// BackupPath returns the backup state file path.
func (s *Store) BackupPath() string { return s.path + BackupSuffix }

// Paths returns every file the store may leave behind, primary first.
func (s *Store) Paths() []string {
	return []string{s.path, s.BackupPath(), s.path + tmpSuffix}
}

// Save records d and active as the current sync. The new snapshot is written
// to a temporary file, the existing primary (if any) becomes the backup, and
// the temporary file is renamed into place. A crash at any point leaves at
// least one complete snapshot on disk.
func (s *Store) Save(d driver.Driver, active string) (State, error) {
	st := State{
		Detected: d.Describe(),
		Active:   active,
		LastSync: s.now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return State{}, fmt.Errorf("serializing state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return State{}, fmt.Errorf("creating state directory: %w", err)
	}
	tmp := s.path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return State{}, fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(s.path, s.BackupPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return State{}, fmt.Errorf("rotating %s to backup: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return State{}, fmt.Errorf("installing %s: %w", s.path, err)
	}
	return st, nil
}

// Load returns the last saved State. found is false, with a nil error, when
// no snapshot could be read at all (never synced). When the primary is
// unusable the backup is returned instead. ErrCorruptState is returned only
// when a file exists but neither generation parses.
func (s *Store) Load() (st State, found bool, err error) {
	existed := false
	for _, p := range []string{s.path, s.BackupPath()} {
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			if !errors.Is(readErr, fs.ErrNotExist) {
				s.logger.Warn("cannot read state file", "path", p, "error", readErr)
			}
			continue
		}
		existed = true

		var candidate State
		if parseErr := json.Unmarshal(data, &candidate); parseErr != nil {
			s.logger.Warn("cannot parse state file", "path", p, "error", parseErr)
			continue
		}
		if p != s.path {
			s.logger.Warn("primary state unusable, using backup", "path", p)
		}
		return candidate, true, nil
	}

	if existed {
		return State{}, false, fmt.Errorf("%w: neither %s nor its backup parse", ErrCorruptState, s.path)
	}
	return State{}, false, nil
}

// Raw returns the on-disk bytes of the primary, falling back to the backup.
// found is false when neither can be read.
func (s *Store) Raw() (Snapshot, bool) {
	if data, err := os.ReadFile(s.path); err == nil {
		return Snapshot{Path: s.path, Data: data}, true
	}
	if data, err := os.ReadFile(s.BackupPath()); err == nil {
		return Snapshot{Path: s.BackupPath(), Data: data, IsBackup: true}, true
	}
	return Snapshot{}, false
}
