// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hostcmd"
)

const (
	// DefaultSystemctl is the service manager binary.
	DefaultSystemctl = "systemctl"
	// DefaultSystemdTmpfiles applies tmpfiles.d rules.
	DefaultSystemdTmpfiles = "systemd-tmpfiles"
)

// Systemd drives systemctl and systemd-tmpfiles.
type Systemd struct {
	runner    *hostcmd.Runner
	systemctl string
	tmpfiles  string
}

// NewSystemd creates a Systemd adapter. Empty binary names select the defaults.
func NewSystemd(runner *hostcmd.Runner, systemctl, tmpfiles string) *Systemd {
	if systemctl == "" {
		systemctl = DefaultSystemctl
	}
	if tmpfiles == "" {
		tmpfiles = DefaultSystemdTmpfiles
	}
	return &Systemd{runner: runner, systemctl: systemctl, tmpfiles: tmpfiles}
}

// ApplyRule creates whatever ruleFile describes, right now.
func (s *Systemd) ApplyRule(ctx context.Context, ruleFile string) error {
	return s.runner.Run(ctx, s.tmpfiles, "--create", ruleFile)
}

// DaemonReload makes systemd re-read unit files.
func (s *Systemd) DaemonReload(ctx context.Context) error {
	return s.runner.Run(ctx, s.systemctl, "daemon-reload")
}

// Enable enables unit at boot.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, s.systemctl, "enable", unit)
}

// Disable disables unit at boot.
func (s *Systemd) Disable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, s.systemctl, "disable", unit)
}

// Stop stops unit.
func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, s.systemctl, "stop", unit)
}
