// SPDX-License-Identifier: MPL-2.0

package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/testutil"
)

var fixedTime = time.Date(2025, 4, 1, 12, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state"), WithClock(func() time.Time { return fixedTime }))
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Save(driver.Nvidia("570.133.07"), "/path/to/result"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	st, found, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false after Save")
	}
	if st.Active != "/path/to/result" {
		t.Errorf("Active = %q, want %q", st.Active, "/path/to/result")
	}
	if st.Detected != "nvidia 570.133.07" {
		t.Errorf("Detected = %q, want %q", st.Detected, "nvidia 570.133.07")
	}
	if st.LastSync != "2025-04-01T12:30:00Z" {
		t.Errorf("LastSync = %q, want RFC3339 timestamp", st.LastSync)
	}
}

func TestStore_OnDiskFormat(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Save(driver.Mesa(), "/nix/store/abc-mesa"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(testutil.MustReadFile(t, s.Path())), &raw); err != nil {
		t.Fatalf("state file is not a JSON object: %v", err)
	}
	want := map[string]string{"detected": "mesa", "active": "/nix/store/abc-mesa", "last_sync": "2025-04-01T12:30:00Z"}
	for k, v := range want {
		if raw[k] != v {
			t.Errorf("%s = %q, want %q", k, raw[k], v)
		}
	}
	if _, err := os.Stat(s.Path() + tmpSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestStore_BackupHoldsPreviousGeneration(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(fixedTime)
	s := New(filepath.Join(t.TempDir(), "state"), WithClock(clock.Now))
	saves := []string{"/nix/store/one", "/nix/store/two", "/nix/store/three"}
	for i, active := range saves {
		if _, err := s.Save(driver.Mesa(), active); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
		clock.Advance(time.Hour)
	}

	var primary, backup State
	if err := json.Unmarshal([]byte(testutil.MustReadFile(t, s.Path())), &primary); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(testutil.MustReadFile(t, s.BackupPath())), &backup); err != nil {
		t.Fatal(err)
	}
	if primary.Active != "/nix/store/three" {
		t.Errorf("primary.Active = %q, want the latest save", primary.Active)
	}
	if backup.Active != "/nix/store/two" {
		t.Errorf("backup.Active = %q, want the previous save", backup.Active)
	}
	if primary.LastSync != "2025-04-01T14:30:00Z" || backup.LastSync != "2025-04-01T13:30:00Z" {
		t.Errorf("last_sync primary=%q backup=%q, want one hour apart", primary.LastSync, backup.LastSync)
	}
}

func TestStore_FirstSaveHasNoBackup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Save(driver.Mesa(), "/nix/store/one"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(s.BackupPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("backup exists after a single save: %v", err)
	}
}

func TestStore_Load(t *testing.T) {
	t.Parallel()

	good := `{"detected":"mesa","active":"/nix/store/good","last_sync":"2025-01-01T00:00:00Z"}`
	backupGood := `{"detected":"mesa","active":"/nix/store/backup","last_sync":"2024-12-31T00:00:00Z"}`

	tests := []struct {
		name       string
		primary    string
		backup     string
		wantFound  bool
		wantActive string
		wantErr    error
	}{
		{name: "nothing on disk"},
		{name: "primary only", primary: good, wantFound: true, wantActive: "/nix/store/good"},
		{name: "backup only", backup: backupGood, wantFound: true, wantActive: "/nix/store/backup"},
		{name: "primary wins", primary: good, backup: backupGood, wantFound: true, wantActive: "/nix/store/good"},
		{name: "corrupt primary falls back", primary: "{not json", backup: backupGood, wantFound: true, wantActive: "/nix/store/backup"},
		{name: "corrupt primary without backup", primary: "{not json", wantErr: ErrCorruptState},
		{name: "both corrupt", primary: "garbage", backup: "[1, 2", wantErr: ErrCorruptState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			if tt.primary != "" {
				testutil.MustWriteFile(t, s.Path(), tt.primary)
			}
			if tt.backup != "" {
				testutil.MustWriteFile(t, s.BackupPath(), tt.backup)
			}

			st, found, err := s.Load()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("Load() found = %v, want %v", found, tt.wantFound)
			}
			if st.Active != tt.wantActive {
				t.Errorf("Active = %q, want %q", st.Active, tt.wantActive)
			}
		})
	}
}

func TestStore_Raw(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, ok := s.Raw(); ok {
		t.Fatal("Raw() found a snapshot in an empty directory")
	}

	testutil.MustWriteFile(t, s.BackupPath(), "{}")
	snap, ok := s.Raw()
	if !ok || !snap.IsBackup || snap.Path != s.BackupPath() {
		t.Errorf("Raw() = %+v, %v; want the backup", snap, ok)
	}

	testutil.MustWriteFile(t, s.Path(), `{"active":"x"}`)
	snap, ok = s.Raw()
	if !ok || snap.IsBackup || string(snap.Data) != `{"active":"x"}` {
		t.Errorf("Raw() = %+v, %v; want the primary", snap, ok)
	}
}

func TestStore_SaveIntoReadOnlyDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.ReadOnlyDir(t, dir)
	s := New(dir)

	if _, err := s.Save(driver.Mesa(), "/nix/store/x"); err == nil {
		t.Fatal("Save() into a read-only directory should fail")
	}
}
