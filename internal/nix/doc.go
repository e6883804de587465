// SPDX-License-Identifier: MPL-2.0

// Package nix drives the external nix tooling: `nix build` for descriptor
// workspaces, `nix-store --add-root` for GC-root pinning, and the parser that
// recovers a fixed-output hash from a deliberately mismatched build.
package nix
