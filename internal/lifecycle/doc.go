// SPDX-License-Identifier: MPL-2.0

// Package lifecycle installs and removes the host integration of the driver
// farm: GC roots under the nix gcroots directory, a tmpfiles.d rule that
// recreates the runtime symlink at boot, and a oneshot systemd unit that
// re-syncs the farm before the display manager starts.
package lifecycle
