// SPDX-License-Identifier: MPL-2.0

package farm

import (
	"context"
	"fmt"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/nix"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/render"

	"github.com/charmbracelet/log"
)

// Resolver finds the fixed-output hash a driver build needs, consulting the
// cache first and otherwise running a deliberately mis-hashed probe build.
type Resolver struct {
	tool  BuildTool
	load  CacheLoader
	cache HashCache
	settings
}

// CacheLoader opens the hash cache on first use.
type CacheLoader func() (HashCache, error)

// NewResolver creates a Resolver over an already loaded cache.
func NewResolver(tool BuildTool, cache HashCache, opts ...Option) *Resolver {
	return &Resolver{tool: tool, cache: cache, settings: newSettings(opts)}
}

// NewLazyResolver creates a Resolver that calls load the first time an
// Nvidia hash is needed. Mesa resolution never touches the cache.
func NewLazyResolver(tool BuildTool, load CacheLoader, opts ...Option) *Resolver {
	return &Resolver{tool: tool, load: load, settings: newSettings(opts)}
}

func (r *Resolver) hashCache() (HashCache, error) {
	if r.cache == nil && r.load != nil {
		cache, err := r.load()
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r.cache, nil
}

// Resolve returns the hash to pin for d. Mesa needs none and yields "".
// For Nvidia a cache hit returns without invoking the build tool. On a miss
// the descriptor is rendered without a hash and built in a private
// workspace; if that build unexpectedly succeeds "" is returned, otherwise
// the hash is recovered from its diagnostics and cached (best effort).
func (r *Resolver) Resolve(ctx context.Context, d driver.Driver, quiet bool) (string, error) {
	return r.resolve(ctx, runLogger(r.logger, d), d, quiet)
}

func (r *Resolver) resolve(ctx context.Context, logger *log.Logger, d driver.Driver, quiet bool) (string, error) {
	if d.Kind() != driver.KindNvidia {
		return "", nil
	}

	cache, err := r.hashCache()
	if err != nil {
		return "", err
	}

	version := d.Version()
	if hash, ok := cache.Get(version); ok {
		logger.Debug("hash cache hit", "version", version, "hash", hash)
		return hash, nil
	}

	descriptor, err := render.Descriptor(d, "")
	if err != nil {
		return "", err
	}
	ws, err := newWorkspace(r.tempDir, "probe", descriptor)
	if err != nil {
		return "", err
	}
	defer ws.cleanup()

	logger.Info("discovering driver hash", "version", version)
	outcome, err := r.tool.Build(ctx, ws.dir, quiet)
	if err != nil {
		return "", fmt.Errorf("probe build for %s: %w", d.Describe(), err)
	}
	if outcome.Succeeded() {
		logger.Warn("probe build succeeded without a hash; nothing to pin", "version", version)
		return "", nil
	}

	hash, err := nix.ExtractHash(outcome.Diagnostics)
	if err != nil {
		return "", err
	}
	logger.Info("discovered driver hash", "version", version, "hash", hash)

	if err := cache.Insert(version, hash); err != nil {
		return "", fmt.Errorf("recording hash for %s: %w", version, err)
	}
	return hash, nil
}
