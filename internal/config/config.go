// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "nix-opengl-driver"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides (NIX_OPENGL_DRIVER_PATHS_STATE_DIR, ...).
	EnvPrefix = "NIX_OPENGL_DRIVER"
	// SystemConfigDir is consulted when the user has no config file.
	SystemConfigDir = "/etc/nix-opengl-driver"

	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the per-user configuration directory,
// $XDG_CONFIG_HOME/nix-opengl-driver (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, AppName), nil
}

// Locate returns the config file that Load would read, or "" when only
// defaults apply. An explicit ConfigFilePath is returned as is.
func Locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	candidates, err := candidatePaths(opts)
	if err != nil {
		return "", err
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

func candidatePaths(opts LoadOptions) ([]string, error) {
	userDir := opts.ConfigDirPath
	if userDir == "" {
		var err error
		if userDir, err = ConfigDir(); err != nil {
			return nil, err
		}
	}
	systemDir := opts.SystemConfigDirPath
	if systemDir == "" {
		systemDir = SystemConfigDir
	}
	name := ConfigFileName + "." + ConfigFileExt
	return []string{filepath.Join(userDir, name), filepath.Join(systemDir, name)}, nil
}

// loadWithOptions performs option-driven config loading. It returns the
// configuration and the file it came from ("" for defaults only).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" && !fileExists(opts.ConfigFilePath) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'nix-opengl-driver config show' to see the default configuration").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	resolvedPath, err := Locate(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'nix-opengl-driver config show' for every key and its default").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Paths must be absolute and tool names non-empty").
			WithSuggestion("Check NIX_OPENGL_DRIVER_* environment variables").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("paths.state_dir", d.Paths.StateDir)
	v.SetDefault("paths.gcroot_dir", d.Paths.GCRootDir)
	v.SetDefault("paths.runtime_symlink", d.Paths.RuntimeSymlink)
	v.SetDefault("paths.tmpfiles_rule", d.Paths.TmpfilesRule)
	v.SetDefault("paths.service_unit", d.Paths.ServiceUnit)
	v.SetDefault("paths.nvidia_version_file", d.Paths.NvidiaVersionFile)
	v.SetDefault("paths.store_dir", d.Paths.StoreDir)
	v.SetDefault("tools.nix", d.Tools.Nix)
	v.SetDefault("tools.nix_store", d.Tools.NixStore)
	v.SetDefault("tools.systemctl", d.Tools.Systemctl)
	v.SetDefault("tools.systemd_tmpfiles", d.Tools.SystemdTmpfiles)
	v.SetDefault("ui.quiet", d.UI.Quiet)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	// Fields are optional, so only the shape is validated, not concreteness.
	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Merge preserves defaults and leaves env overrides on top.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config file accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// nix-opengl-driver configuration\n\n")

	sb.WriteString("paths: {\n")
	fmt.Fprintf(&sb, "\tstate_dir:           %q\n", cfg.Paths.StateDir)
	fmt.Fprintf(&sb, "\tgcroot_dir:          %q\n", cfg.Paths.GCRootDir)
	fmt.Fprintf(&sb, "\truntime_symlink:     %q\n", cfg.Paths.RuntimeSymlink)
	fmt.Fprintf(&sb, "\ttmpfiles_rule:       %q\n", cfg.Paths.TmpfilesRule)
	fmt.Fprintf(&sb, "\tservice_unit:        %q\n", cfg.Paths.ServiceUnit)
	fmt.Fprintf(&sb, "\tnvidia_version_file: %q\n", cfg.Paths.NvidiaVersionFile)
	fmt.Fprintf(&sb, "\tstore_dir:           %q\n", cfg.Paths.StoreDir)
	sb.WriteString("}\n")

	sb.WriteString("\ntools: {\n")
	fmt.Fprintf(&sb, "\tnix:              %q\n", cfg.Tools.Nix)
	fmt.Fprintf(&sb, "\tnix_store:        %q\n", cfg.Tools.NixStore)
	fmt.Fprintf(&sb, "\tsystemctl:        %q\n", cfg.Tools.Systemctl)
	fmt.Fprintf(&sb, "\tsystemd_tmpfiles: %q\n", cfg.Tools.SystemdTmpfiles)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tquiet:   %v\n", cfg.UI.Quiet)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
