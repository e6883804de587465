// SPDX-License-Identifier: MPL-2.0

// Package driver models the active GPU driver stack and detects it from the
// kernel-exposed NVIDIA version file.
//
// Driver is a two-case tagged union (Mesa, or Nvidia with a version). Rendering
// and hash resolution switch on Driver.Kind rather than dispatching through an
// interface.
package driver
