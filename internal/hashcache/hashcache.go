// SPDX-License-Identifier: MPL-2.0

package hashcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ErrCorrupt is returned by Load when the cache file exists but does not parse.
var ErrCorrupt = errors.New("hash store is corrupt")

const (
	// FileName is the cache file name in both storage locations.
	FileName = "hashmap.json"

	appDir = "nix-opengl-driver"
)

type (
	// Location is the single authoritative storage path for this process,
	// resolved once by ResolveLocation.
	Location struct {
		Path string
		// Global is true when the path is the system-wide cache used by
		// privileged runs (the boot-time service).
		Global bool
	}

	// LocationOptions are the inputs to ResolveLocation.
	LocationOptions struct {
		// EUID is the effective user id of the process.
		EUID int
		// GlobalDir holds the system-wide cache (the state directory).
		GlobalDir string
		// DataHome overrides $XDG_DATA_HOME lookup when set.
		DataHome string
		// HomeDir overrides the home directory lookup when set.
		HomeDir string
	}

	// document is the on-disk shape: a JSON object under a single "map" key.
	document struct {
		Map map[string]string `json:"map"`
	}

	// Cache is the persisted version→hash mapping.
	Cache struct {
		loc    Location
		data   document
		logger *log.Logger
	}
)

// ResolveLocation picks the storage path once per process: the global
// directory when running privileged, otherwise the per-user data directory
// ($XDG_DATA_HOME, falling back to ~/.local/share). The two locations are
// never merged.
func ResolveLocation(opts LocationOptions) (Location, error) {
	if opts.EUID == 0 {
		return Location{Path: filepath.Join(opts.GlobalDir, FileName), Global: true}, nil
	}

	dataHome := opts.DataHome
	if dataHome == "" {
		dataHome = os.Getenv("XDG_DATA_HOME")
	}
	if dataHome == "" {
		home := opts.HomeDir
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return Location{}, fmt.Errorf("failed to get home directory: %w", err)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return Location{Path: filepath.Join(dataHome, appDir, FileName)}, nil
}

// Load reads the cache at loc. A missing file yields an empty cache; an
// existing file that does not parse is a hard error and is never replaced.
func Load(loc Location, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Cache{loc: loc, data: document{Map: map[string]string{}}, logger: logger}

	raw, err := os.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("reading hash store at %s: %w", loc.Path, err)
	}

	if err := json.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON in %s: %w", ErrCorrupt, loc.Path, err)
	}
	if c.data.Map == nil {
		c.data.Map = map[string]string{}
	}
	return c, nil
}

// Location returns where this cache persists.
func (c *Cache) Location() Location { return c.loc }

// Get returns the hash recorded for version.
func (c *Cache) Get(version string) (string, bool) {
	h, ok := c.data.Map[version]
	return h, ok
}

// Entries returns a copy of the whole mapping.
func (c *Cache) Entries() map[string]string {
	return maps.Clone(c.data.Map)
}

// Insert records hash for version and persists the whole mapping. Permission
// errors while creating the directory or writing the file are logged as
// warnings and the call still succeeds; the in-memory entry stays usable for
// the rest of the run. Any other I/O error is returned.
func (c *Cache) Insert(version, hash string) error {
	c.data.Map[version] = hash

	out, err := c.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.loc.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			c.logger.Warn("cannot create hash store directory", "dir", dir, "error", err)
			return nil
		}
		return fmt.Errorf("creating directory for hash store: %w", err)
	}

	if err := os.WriteFile(c.loc.Path, out, 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			c.logger.Warn("cannot write hash store", "path", c.loc.Path, "error", err)
			return nil
		}
		return fmt.Errorf("writing hash store to %s: %w", c.loc.Path, err)
	}
	return nil
}

// Marshal returns the pretty-printed on-disk form of the mapping.
func (c *Cache) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing hash store: %w", err)
	}
	return out, nil
}
