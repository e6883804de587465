// SPDX-License-Identifier: MPL-2.0

// Package farm builds the driver symlink farm.
//
// Nvidia drivers are fetched as fixed-output downloads whose hash is not
// known up front. The Resolver learns it by building once with a placeholder
// hash and reading the real one from the build tool's mismatch report; the
// result is cached per driver version so the probe runs once per version.
// The Orchestrator then builds again with the pinned hash, and the Syncer
// pins the output as a GC root and records the sync.
//
// Every build runs in its own freshly created temporary directory that is
// removed afterwards.
package farm
