// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for nix-opengl-driver.
//
// This package implements the Cobra command hierarchy: detection and status
// reporting, building and syncing the driver farm, installing and removing
// the boot-time integration (tmpfiles.d rule, systemd service, GC roots) and
// configuration inspection. Command handlers delegate to the internal
// packages through the App composition root.
package cmd
