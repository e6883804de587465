// SPDX-License-Identifier: MPL-2.0

// Package hostcmd runs the host binaries this tool drives as black boxes
// (nix, nix-store, systemctl, systemd-tmpfiles) and classifies their exit
// status. Command construction goes through an injectable ExecCommandFunc so
// tests can substitute a helper process.
package hostcmd
