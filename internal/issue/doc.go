// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints; the Markdown catalog (rendered with glamour) explains
// each failure class the CLI can report in more depth.
package issue
