// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is read from the file named by --config, otherwise from
// $XDG_CONFIG_HOME/nix-opengl-driver/config.cue, otherwise from
// /etc/nix-opengl-driver/config.cue; with no file the built-in defaults apply.
// Files are validated against the embedded schema (config_schema.cue).
// Every key can be overridden with a NIX_OPENGL_DRIVER_ environment variable,
// e.g. NIX_OPENGL_DRIVER_PATHS_STATE_DIR.
package config
