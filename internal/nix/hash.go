// SPDX-License-Identifier: MPL-2.0

package nix

import (
	"errors"
	"regexp"
	"strings"
)

// ErrHashDiscovery is the sentinel error wrapped by HashDiscoveryError.
var ErrHashDiscovery = errors.New("hash discovery failed")

// gotHashRE matches the actual-hash line of a fixed-output hash mismatch
// ("got:    sha256-..."). Only SRI hashes are recognised.
var gotHashRE = regexp.MustCompile(`got:\s*(sha(?:256|512)-[A-Za-z0-9+/]+=*)`)

// HashDiscoveryError is returned when a probe build's diagnostics contain no
// recognisable hash mismatch report.
type HashDiscoveryError struct {
	Diagnostics string
}

// Error implements the error interface.
func (e *HashDiscoveryError) Error() string {
	msg := "no `got:` hash found in build output"
	if tail := lastLines(e.Diagnostics, 5); tail != "" {
		msg += ":\n" + tail
	}
	return msg
}

// Unwrap returns ErrHashDiscovery for errors.Is() compatibility.
func (e *HashDiscoveryError) Unwrap() error { return ErrHashDiscovery }

// ExtractHash returns the first hash reported on a `got:` line of a build's
// diagnostic text. The `specified:` line is ignored.
func ExtractHash(diagnostics string) (string, error) {
	m := gotHashRE.FindStringSubmatch(diagnostics)
	if m == nil {
		return "", &HashDiscoveryError{Diagnostics: diagnostics}
	}
	return m[1], nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
