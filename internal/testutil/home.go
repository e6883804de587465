// SPDX-License-Identifier: MPL-2.0

package testutil

import "testing"

// SetHomeDir points HOME and the XDG base directories at dir and returns a
// cleanup function that restores the original values.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
//	    // Test code that resolves per-user paths...
//	}
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	restoreHome := MustSetenv(t, "HOME", dir)
	restoreData := MustSetenv(t, "XDG_DATA_HOME", "")
	restoreConfig := MustSetenv(t, "XDG_CONFIG_HOME", "")
	return func() {
		restoreConfig()
		restoreData()
		restoreHome()
	}
}
