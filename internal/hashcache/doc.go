// SPDX-License-Identifier: MPL-2.0

// Package hashcache persists the NVIDIA version→content-hash mapping
// discovered by the two-phase build probe, so each version is probed once.
//
// Storage is privilege dependent and chosen once per process by
// ResolveLocation. Writes degrade to warnings on permission errors.
package hashcache
