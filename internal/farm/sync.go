// SPDX-License-Identifier: MPL-2.0

package farm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/state"
)

// Syncer builds the farm, pins it as the current GC root and records the sync.
type Syncer struct {
	orchestrator *Orchestrator
	roots        GCRooter
	store        StateSaver
	currentRoot  string
	settings
}

// NewSyncer creates a Syncer pinning results at the currentRoot link.
func NewSyncer(o *Orchestrator, roots GCRooter, store StateSaver, currentRoot string, opts ...Option) *Syncer {
	return &Syncer{orchestrator: o, roots: roots, store: store, currentRoot: currentRoot, settings: newSettings(opts)}
}

// CurrentRoot is the GC-root link that pins the active farm.
func (s *Syncer) CurrentRoot() string { return s.currentRoot }

// Sync builds the farm for d, pins it and saves state. State is only written
// once the pin is in place, so it never names an unpinned path.
func (s *Syncer) Sync(ctx context.Context, d driver.Driver, quiet bool) (state.State, error) {
	path, err := s.orchestrator.Build(ctx, d, quiet)
	if err != nil {
		return state.State{}, err
	}

	if err := os.MkdirAll(filepath.Dir(s.currentRoot), 0o755); err != nil {
		return state.State{}, fmt.Errorf("creating GC-root directory: %w", err)
	}
	s.logger.Info("updating GC root", "link", s.CurrentRoot(), "path", path)
	if err := s.roots.AddRoot(ctx, s.CurrentRoot(), path); err != nil {
		return state.State{}, fmt.Errorf("%w: %w", ErrPinFailed, err)
	}

	st, err := s.store.Save(d, path)
	if err != nil {
		return state.State{}, fmt.Errorf("saving sync state: %w", err)
	}
	return st, nil
}
