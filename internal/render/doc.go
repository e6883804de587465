// SPDX-License-Identifier: MPL-2.0

// Package render turns a driver selection into build-descriptor text and
// renders the OS integration files (service unit, tmpfiles rule).
//
// Templates are embedded at build time; rendering is a pure function of its
// inputs.
package render
