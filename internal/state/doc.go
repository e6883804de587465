// SPDX-License-Identifier: MPL-2.0

// Package state persists the record of the last successful sync
// (detected driver, active store path, timestamp) with one backup generation.
package state
