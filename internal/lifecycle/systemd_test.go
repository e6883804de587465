// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hostcmd"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.HelperProcess(t) }

func TestSystemd_CommandLines(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandRecorder()
	s := NewSystemd(hostcmd.New(hostcmd.WithExecCommand(mock.ContextCommandFunc(t))), "", "")
	ctx := context.Background()

	steps := []func() error{
		func() error { return s.ApplyRule(ctx, "/etc/tmpfiles.d/nix-opengl-driver.conf") },
		func() error { return s.DaemonReload(ctx) },
		func() error { return s.Enable(ctx, ServiceName) },
		func() error { return s.Stop(ctx, ServiceName) },
		func() error { return s.Disable(ctx, ServiceName) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	mock.AssertCommandLines(t,
		"systemd-tmpfiles --create /etc/tmpfiles.d/nix-opengl-driver.conf",
		"systemctl daemon-reload",
		"systemctl enable nix-opengl-driver.service",
		"systemctl stop nix-opengl-driver.service",
		"systemctl disable nix-opengl-driver.service",
	)
}

func TestSystemd_Failure(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandRecorder()
	mock.Default = testutil.MockResponse{ExitCode: 5, Stderr: "Failed to stop nix-opengl-driver.service: Unit not loaded.\n"}
	s := NewSystemd(hostcmd.New(hostcmd.WithExecCommand(mock.ContextCommandFunc(t))), "/run/current-system/sw/bin/systemctl", "")

	err := s.Stop(context.Background(), ServiceName)
	if !errors.Is(err, hostcmd.ErrCommandFailed) {
		t.Fatalf("Stop() error = %v, want ErrCommandFailed", err)
	}
	var cmdErr *hostcmd.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.ExitCode != 5 {
		t.Errorf("exit code = %v, want 5", err)
	}
	if inv := mock.LastInvocation(); inv == nil || inv.Name != "/run/current-system/sw/bin/systemctl" {
		t.Errorf("invoked %+v, want the configured systemctl", inv)
	}
}
