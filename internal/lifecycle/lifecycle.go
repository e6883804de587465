// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/render"

	"github.com/charmbracelet/log"
)

const (
	// ServiceName is the systemd unit name of the boot-time sync service.
	ServiceName = "nix-opengl-driver.service"

	// CurrentRootName pins the active driver farm.
	CurrentRootName = "current"
	// ToolRootName pins the store path this tool runs from.
	ToolRootName = "tool"
)

// ErrStep is the sentinel error wrapped by StepError.
var ErrStep = errors.New("lifecycle step failed")

type (
	// Paths are the filesystem locations of every managed artifact.
	Paths struct {
		GCRootDir      string
		RuntimeSymlink string
		TmpfilesRule   string
		ServiceUnit    string
		StoreDir       string
		// StateFiles are removed on uninstall (primary first).
		StateFiles []string
	}

	// SystemManager is the OS facility applying boot rules and managing services.
	SystemManager interface {
		ApplyRule(ctx context.Context, ruleFile string) error
		DaemonReload(ctx context.Context) error
		Enable(ctx context.Context, unit string) error
		Disable(ctx context.Context, unit string) error
		Stop(ctx context.Context, unit string) error
	}

	// GCRooter pins a store path so the garbage collector keeps it.
	GCRooter interface {
		AddRoot(ctx context.Context, link, target string) error
	}

	// ExecutableFunc returns the path of the running executable.
	ExecutableFunc func() (string, error)

	// Option configures a Manager.
	Option func(*Manager)

	// Manager installs and removes the OS integration points: the GC roots,
	// the tmpfiles.d rule recreating the runtime symlink and the boot-time
	// sync service. Every step is idempotent.
	Manager struct {
		paths      Paths
		system     SystemManager
		roots      GCRooter
		executable ExecutableFunc
		logger     *log.Logger
	}

	// ToolLocation is where the running tool lives.
	ToolLocation struct {
		// Path is the resolved absolute executable path.
		Path string
		// StoreItem is the top-level store path containing Path, or "" when
		// the tool does not run from the store.
		StoreItem string
	}

	// StepError reports the install or uninstall step that failed.
	StepError struct {
		Step string
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s (%s): %v", e.Step, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns ErrStep and the underlying cause.
func (e *StepError) Unwrap() []error { return []error{ErrStep, e.Err} }

// InStore reports whether the tool runs from the store.
func (l ToolLocation) InStore() bool { return l.StoreItem != "" }

// WithExecutable overrides how the running executable is located.
func WithExecutable(fn ExecutableFunc) Option {
	return func(m *Manager) {
		m.executable = fn
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager.
func New(paths Paths, system SystemManager, roots GCRooter, opts ...Option) *Manager {
	m := &Manager{
		paths:      paths,
		system:     system,
		roots:      roots,
		executable: os.Executable,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Paths returns the managed artifact locations.
func (m *Manager) Paths() Paths { return m.paths }

// CurrentRoot is the GC-root link pinning the active farm.
func (m *Manager) CurrentRoot() string { return filepath.Join(m.paths.GCRootDir, CurrentRootName) }

// ToolRoot is the GC-root link pinning the tool itself.
func (m *Manager) ToolRoot() string { return filepath.Join(m.paths.GCRootDir, ToolRootName) }

// Rule returns the tmpfiles.d rule pointing the runtime symlink at the
// current GC root.
func (m *Manager) Rule() string {
	return render.TmpfilesRule(m.paths.RuntimeSymlink, m.CurrentRoot())
}

// InstallArtifacts installs the boot rule and then the service.
func (m *Manager) InstallArtifacts(ctx context.Context) error {
	if err := m.InstallRule(ctx); err != nil {
		return err
	}
	return m.InstallService(ctx)
}

// UninstallArtifacts removes, in order, the GC roots, the state files, the
// boot rule and the service. Artifacts that are already absent are skipped;
// any other failure stops the sequence and leaves earlier removals in place.
func (m *Manager) UninstallArtifacts(ctx context.Context) error {
	for _, p := range []string{m.CurrentRoot(), m.ToolRoot()} {
		if err := m.remove("remove GC root", p); err != nil {
			return err
		}
	}
	for _, p := range m.paths.StateFiles {
		if err := m.remove("remove state file", p); err != nil {
			return err
		}
	}
	if err := m.UninstallRule(); err != nil {
		return err
	}
	return m.UninstallService(ctx)
}

// InstallRule writes the tmpfiles.d rule and applies it immediately so the
// runtime symlink exists without a reboot.
func (m *Manager) InstallRule(ctx context.Context) error {
	if err := writeFile(m.paths.TmpfilesRule, m.Rule()); err != nil {
		return &StepError{Step: "write tmpfiles rule", Path: m.paths.TmpfilesRule, Err: err}
	}
	m.logger.Info("installed tmpfiles rule", "path", m.paths.TmpfilesRule)

	if err := m.system.ApplyRule(ctx, m.paths.TmpfilesRule); err != nil {
		return &StepError{Step: "apply tmpfiles rule", Path: m.paths.TmpfilesRule, Err: err}
	}
	m.logger.Info("runtime symlink populated", "path", m.paths.RuntimeSymlink)
	return nil
}

// UninstallRule removes the tmpfiles.d rule.
func (m *Manager) UninstallRule() error {
	return m.remove("remove tmpfiles rule", m.paths.TmpfilesRule)
}

// LocateTool resolves the running executable and, when it lives in the
// store, the store item containing it.
func (m *Manager) LocateTool() (ToolLocation, error) {
	exe, err := m.executable()
	if err != nil {
		return ToolLocation{}, fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exe, err = filepath.Abs(exe)
	if err != nil {
		return ToolLocation{}, fmt.Errorf("locating executable: %w", err)
	}
	return ToolLocation{Path: exe, StoreItem: storeItem(m.paths.StoreDir, exe)}, nil
}

// ServiceUnit renders the unit file for the running tool.
func (m *Manager) ServiceUnit() (string, ToolLocation, error) {
	loc, err := m.LocateTool()
	if err != nil {
		return "", ToolLocation{}, err
	}
	unit, err := render.ServiceUnit(loc.Path)
	if err != nil {
		return "", ToolLocation{}, err
	}
	return unit, loc, nil
}

// InstallService pins the tool (when it runs from the store), writes the
// unit file, reloads the service manager and enables the unit.
func (m *Manager) InstallService(ctx context.Context) error {
	unit, loc, err := m.ServiceUnit()
	if err != nil {
		return &StepError{Step: "render service unit", Err: err}
	}

	if loc.InStore() {
		if err := os.MkdirAll(m.paths.GCRootDir, 0o755); err != nil {
			return &StepError{Step: "create GC-root directory", Path: m.paths.GCRootDir, Err: err}
		}
		if err := m.roots.AddRoot(ctx, m.ToolRoot(), loc.StoreItem); err != nil {
			return &StepError{Step: "pin tool", Path: m.ToolRoot(), Err: err}
		}
	} else {
		m.logger.Warn("tool is not in the store; the service will run it from its current path", "path", loc.Path)
	}

	if err := writeFile(m.paths.ServiceUnit, unit); err != nil {
		return &StepError{Step: "write service unit", Path: m.paths.ServiceUnit, Err: err}
	}
	if err := m.system.DaemonReload(ctx); err != nil {
		return &StepError{Step: "reload service manager", Err: err}
	}
	if err := m.system.Enable(ctx, ServiceName); err != nil {
		return &StepError{Step: "enable service", Path: ServiceName, Err: err}
	}
	m.logger.Info("installed service", "unit", m.paths.ServiceUnit, "tool", loc.Path)
	return nil
}

// UninstallService stops and disables the unit, removes its file and reloads
// the service manager. Stopping a unit that is not loaded is not an error.
func (m *Manager) UninstallService(ctx context.Context) error {
	if err := m.system.Stop(ctx, ServiceName); err != nil {
		m.logger.Debug("stopping service failed", "error", err)
	}

	_, statErr := os.Lstat(m.paths.ServiceUnit)
	switch {
	case statErr == nil:
		if err := m.system.Disable(ctx, ServiceName); err != nil {
			return &StepError{Step: "disable service", Path: ServiceName, Err: err}
		}
		if err := m.remove("remove service unit", m.paths.ServiceUnit); err != nil {
			return err
		}
	case !errors.Is(statErr, fs.ErrNotExist):
		return &StepError{Step: "inspect service unit", Path: m.paths.ServiceUnit, Err: statErr}
	}

	if err := m.system.DaemonReload(ctx); err != nil {
		return &StepError{Step: "reload service manager", Err: err}
	}
	return nil
}

func (m *Manager) remove(step, path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &StepError{Step: step, Path: path, Err: err}
	}
	m.logger.Debug("removed", "path", path)
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// storeItem returns storeDir/<name> when path lies below storeDir.
func storeItem(storeDir, path string) string {
	if storeDir == "" {
		return ""
	}
	rel, err := filepath.Rel(filepath.Clean(storeDir), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	return filepath.Join(storeDir, first)
}
