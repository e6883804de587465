// SPDX-License-Identifier: MPL-2.0

package farm

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/render"
)

// Orchestrator builds the symlink farm for a driver.
type Orchestrator struct {
	resolver *Resolver
	tool     BuildTool
	settings
}

// NewOrchestrator creates an Orchestrator that resolves hashes with resolver
// and builds with tool.
func NewOrchestrator(resolver *Resolver, tool BuildTool, opts ...Option) *Orchestrator {
	return &Orchestrator{resolver: resolver, tool: tool, settings: newSettings(opts)}
}

// Descriptor renders the build descriptor for d. When resolveHash is false
// the hash placeholder is left in place.
func (o *Orchestrator) Descriptor(ctx context.Context, d driver.Driver, resolveHash, quiet bool) (string, error) {
	hash := ""
	if resolveHash {
		var err error
		if hash, err = o.resolver.Resolve(ctx, d, quiet); err != nil {
			return "", err
		}
	}
	return render.Descriptor(d, hash)
}

// Build resolves the hash for d, builds the farm in a fresh private
// workspace and returns the canonical store path of the result. A non-zero
// exit of this build is a *BuildFailure.
func (o *Orchestrator) Build(ctx context.Context, d driver.Driver, quiet bool) (string, error) {
	logger := runLogger(o.logger, d)

	hash, err := o.resolver.resolve(ctx, logger, d, quiet)
	if err != nil {
		return "", fmt.Errorf("resolving hash before building: %w", err)
	}

	descriptor, err := render.Descriptor(d, hash)
	if err != nil {
		return "", err
	}
	ws, err := newWorkspace(o.tempDir, "build", descriptor)
	if err != nil {
		return "", err
	}
	defer ws.cleanup()

	logger.Info("building driver farm")
	outcome, err := o.tool.Build(ctx, ws.dir, quiet)
	if err != nil {
		return "", fmt.Errorf("building %s: %w", d.Describe(), err)
	}
	if !outcome.Succeeded() {
		return "", &BuildFailure{Driver: d, ExitCode: outcome.ExitCode, Diagnostics: outcome.Diagnostics}
	}

	path, err := filepath.EvalSymlinks(ws.resultPath())
	if err != nil {
		return "", fmt.Errorf("resolving build result: %w", err)
	}
	logger.Debug("build finished", "path", path)
	return path, nil
}
