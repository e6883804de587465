// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MustSetenv sets the environment variable key to value.
// It returns a cleanup function that restores the original value (or unsets it).
// The test fails immediately if the operation fails.
func MustSetenv(t testing.TB, key, value string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	return func() {
		if hadValue {
			if err := os.Setenv(key, originalValue); err != nil {
				t.Errorf("failed to restore env %s: %v", key, err)
			}
		} else {
			if err := os.Unsetenv(key); err != nil {
				t.Errorf("failed to unset env %s: %v", key, err)
			}
		}
	}
}

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes data to path, creating parent directories as needed.
func MustWriteFile(t testing.TB, path string, data string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustReadFile returns the contents of path.
func MustReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// ReadOnlyDir creates a directory that the current user cannot write to and
// restores its permissions on cleanup so t.TempDir can remove it. Tests
// relying on permission errors are skipped when running as root, since root
// bypasses file mode checks.
func ReadOnlyDir(t testing.TB, path string) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("skipping permission test: running as root")
	}
	MustMkdirAll(t, path, 0o755)
	if err := os.Chmod(path, 0o555); err != nil {
		t.Fatalf("failed to chmod %s: %v", path, err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(path, 0o755) // Test cleanup; error non-critical
	})
}
