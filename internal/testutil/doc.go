// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv,
// SetHomeDir), file operations (MustMkdirAll, MustWriteFile, ReadOnlyDir) and
// MockCommandRecorder, which fakes host binaries (nix, systemctl, ...) with the
// TestHelperProcess pattern.
package testutil
