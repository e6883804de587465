// SPDX-License-Identifier: MPL-2.0

package farm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/nix"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/render"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/state"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrBuildFailed is the sentinel error wrapped by BuildFailure.
var ErrBuildFailed = errors.New("build failed")

// ErrPinFailed is wrapped when the built farm cannot be registered as the
// current GC root.
var ErrPinFailed = errors.New("pinning driver farm failed")

type (
	// BuildTool runs one build of the descriptor found in dir.
	BuildTool interface {
		Build(ctx context.Context, dir string, quiet bool) (nix.Outcome, error)
	}

	// HashCache maps driver versions to their fixed-output hashes.
	HashCache interface {
		Get(version string) (string, bool)
		Insert(version, hash string) error
	}

	// GCRooter pins a store path so the garbage collector keeps it.
	GCRooter interface {
		AddRoot(ctx context.Context, link, target string) error
	}

	// StateSaver records a completed sync.
	StateSaver interface {
		Save(d driver.Driver, active string) (state.State, error)
	}

	// BuildFailure is returned when the hash-pinned build exits non-zero.
	BuildFailure struct {
		Driver      driver.Driver
		ExitCode    int
		Diagnostics string
	}

	// Option configures a Resolver or Orchestrator.
	Option func(*settings)

	settings struct {
		logger  *log.Logger
		tempDir string
	}
)

// Error implements the error interface.
func (e *BuildFailure) Error() string {
	return fmt.Sprintf("`nix build` for %s exited with status %d:\n%s", e.Driver.Describe(), e.ExitCode, e.Diagnostics)
}

// Unwrap returns ErrBuildFailed for errors.Is() compatibility.
func (e *BuildFailure) Unwrap() error { return ErrBuildFailed }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithTempDir sets the parent directory for build workspaces (os.TempDir by default).
func WithTempDir(dir string) Option {
	return func(s *settings) {
		s.tempDir = dir
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// runLogger tags every log line of one resolution+build with the same run id.
func runLogger(l *log.Logger, d driver.Driver) *log.Logger {
	return l.With("run", uuid.NewString(), "driver", d.Describe())
}

// workspace is a private, disposable build directory holding one rendered
// descriptor. It is removed, together with the result link, by cleanup.
type workspace struct {
	dir string
}

func newWorkspace(parent, purpose, descriptor string) (*workspace, error) {
	dir, err := os.MkdirTemp(parent, "nix-opengl-driver-"+purpose+"-")
	if err != nil {
		return nil, fmt.Errorf("creating %s workspace: %w", purpose, err)
	}
	ws := &workspace{dir: dir}
	if err := os.WriteFile(filepath.Join(dir, render.DescriptorFileName), []byte(descriptor), 0o644); err != nil {
		ws.cleanup()
		return nil, fmt.Errorf("writing %s descriptor: %w", purpose, err)
	}
	return ws, nil
}

func (w *workspace) resultPath() string { return filepath.Join(w.dir, nix.ResultLink) }

func (w *workspace) cleanup() { _ = os.RemoveAll(w.dir) }
