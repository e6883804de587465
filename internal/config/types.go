// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config holds the application configuration.
	Config struct {
		// Paths locates every file the tool reads or manages.
		Paths PathsConfig `json:"paths" mapstructure:"paths"`
		// Tools names the external binaries the tool drives.
		Tools ToolsConfig `json:"tools" mapstructure:"tools"`
		// UI configures output verbosity.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// PathsConfig locates state, GC roots and the OS integration files.
	PathsConfig struct {
		// StateDir holds state.json, its backup and the system-wide hash cache.
		StateDir string `json:"state_dir" mapstructure:"state_dir"`
		// GCRootDir holds the `current` and `tool` GC-root links.
		GCRootDir string `json:"gcroot_dir" mapstructure:"gcroot_dir"`
		// RuntimeSymlink is recreated at boot to point at the current farm.
		RuntimeSymlink string `json:"runtime_symlink" mapstructure:"runtime_symlink"`
		// TmpfilesRule is the tmpfiles.d rule file.
		TmpfilesRule string `json:"tmpfiles_rule" mapstructure:"tmpfiles_rule"`
		// ServiceUnit is the systemd unit file.
		ServiceUnit string `json:"service_unit" mapstructure:"service_unit"`
		// NvidiaVersionFile is the kernel-exposed proprietary driver version file.
		NvidiaVersionFile string `json:"nvidia_version_file" mapstructure:"nvidia_version_file"`
		// StoreDir is the nix store; a tool running from inside it is pinned.
		StoreDir string `json:"store_dir" mapstructure:"store_dir"`
	}

	// ToolsConfig names external binaries, resolved through $PATH unless absolute.
	ToolsConfig struct {
		Nix             string `json:"nix" mapstructure:"nix"`
		NixStore        string `json:"nix_store" mapstructure:"nix_store"`
		Systemctl       string `json:"systemctl" mapstructure:"systemctl"`
		SystemdTmpfiles string `json:"systemd_tmpfiles" mapstructure:"systemd_tmpfiles"`
	}

	// UIConfig configures output verbosity.
	UIConfig struct {
		// Quiet suppresses forwarded build output and informational logs.
		Quiet bool `json:"quiet" mapstructure:"quiet"`
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			StateDir:          "/var/lib/nix-opengl-driver",
			GCRootDir:         "/nix/var/nix/gcroots/nix-opengl-driver",
			RuntimeSymlink:    "/run/opengl-driver",
			TmpfilesRule:      "/etc/tmpfiles.d/nix-opengl-driver.conf",
			ServiceUnit:       "/etc/systemd/system/nix-opengl-driver.service",
			NvidiaVersionFile: "/proc/driver/nvidia/version",
			StoreDir:          "/nix/store",
		},
		Tools: ToolsConfig{
			Nix:             "nix",
			NixStore:        "nix-store",
			Systemctl:       "systemctl",
			SystemdTmpfiles: "systemd-tmpfiles",
		},
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks constraints the schema cannot see, such as values arriving
// through environment overrides. Returns nil when valid.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range map[string]string{
		"paths.state_dir":           c.Paths.StateDir,
		"paths.gcroot_dir":          c.Paths.GCRootDir,
		"paths.runtime_symlink":     c.Paths.RuntimeSymlink,
		"paths.tmpfiles_rule":       c.Paths.TmpfilesRule,
		"paths.service_unit":        c.Paths.ServiceUnit,
		"paths.nvidia_version_file": c.Paths.NvidiaVersionFile,
		"paths.store_dir":           c.Paths.StoreDir,
	} {
		if !filepath.IsAbs(p) {
			errs = append(errs, fmt.Errorf("%s: %q is not an absolute path", name, p))
		}
	}
	for name, b := range map[string]string{
		"tools.nix":              c.Tools.Nix,
		"tools.nix_store":        c.Tools.NixStore,
		"tools.systemctl":        c.Tools.Systemctl,
		"tools.systemd_tmpfiles": c.Tools.SystemdTmpfiles,
	} {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", name))
		}
	}
	if len(errs) > 0 {
		// Map iteration order is random.
		slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
