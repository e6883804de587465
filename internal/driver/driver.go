// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	// KindMesa is the open-source driver stack. It carries no further data.
	KindMesa Kind = iota + 1
	// KindNvidia is the proprietary, version-pinned driver stack.
	KindNvidia

	// DefaultVersionFile is the kernel-exposed file the NVIDIA module publishes
	// while it is loaded.
	DefaultVersionFile = "/proc/driver/nvidia/version"
)

var (
	// ErrDetection is the sentinel error wrapped by DetectionError.
	ErrDetection = errors.New("driver detection failed")

	// ErrConflictingOverride is returned when both overrides are requested at once.
	ErrConflictingOverride = errors.New("--force-mesa and --force-nvidia are mutually exclusive")

	// ErrEmptyVersion is returned when an NVIDIA override carries no version.
	ErrEmptyVersion = errors.New("nvidia driver version must not be empty")

	// ErrInvalidVersion is returned when an NVIDIA override is not a dotted
	// numeric version such as 570.133.07.
	ErrInvalidVersion = errors.New("invalid nvidia driver version")

	// The open kernel module reports "Open Kernel Module for <arch>  <version>".
	kernelModulePattern = regexp.MustCompile(`Kernel Module(?: for \S+)?\s+(\d[\d.]*)`)
	versionPattern      = regexp.MustCompile(`^\d[\d.]*$`)
)

type (
	// Kind tags which case of the Driver union is populated.
	Kind int

	// Driver is a two-case tagged union: Mesa, or Nvidia with a version.
	// Use Mesa() and Nvidia() to construct values; switch on Kind to consume them.
	Driver struct {
		kind    Kind
		version string
	}

	// DetectionError is returned when the version file exists but its contents
	// do not carry a recognizable kernel module version.
	DetectionError struct {
		Path    string
		Content string
	}

	// Detector inspects the running system for the active driver stack.
	Detector struct {
		// VersionFile is the kernel-exposed NVIDIA version file.
		VersionFile string
	}

	// Override captures the explicit driver selection from the command line.
	// The zero value means "detect".
	Override struct {
		ForceMesa     bool
		NvidiaVersion string
	}
)

// Mesa returns the Mesa driver.
func Mesa() Driver { return Driver{kind: KindMesa} }

// Nvidia returns the NVIDIA driver pinned to version.
func Nvidia(version string) Driver { return Driver{kind: KindNvidia, version: version} }

// Kind returns the populated case.
func (d Driver) Kind() Kind { return d.kind }

// Version returns the NVIDIA version, or "" for Mesa.
func (d Driver) Version() string { return d.version }

// Describe returns the human-readable form persisted in the sync state,
// e.g. "nvidia 570.133.07" or "mesa".
func (d Driver) Describe() string {
	switch d.kind {
	case KindNvidia:
		return "nvidia " + d.version
	case KindMesa:
		return "mesa"
	}
	return "unknown"
}

// String returns the debug form printed by the driver command.
func (d Driver) String() string {
	switch d.kind {
	case KindNvidia:
		return fmt.Sprintf("Nvidia(%q)", d.version)
	case KindMesa:
		return "Mesa"
	}
	return "Unknown"
}

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMesa:
		return "mesa"
	case KindNvidia:
		return "nvidia"
	}
	return "unknown"
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("failed to parse NVIDIA version from %s: no %q token in %q",
		e.Path, "Kernel Module <version>", strings.TrimSpace(e.Content))
}

// Unwrap returns ErrDetection so callers can use errors.Is.
func (e *DetectionError) Unwrap() error { return ErrDetection }

// NewDetector returns a Detector reading versionFile, or DefaultVersionFile when empty.
func NewDetector(versionFile string) *Detector {
	if versionFile == "" {
		versionFile = DefaultVersionFile
	}
	return &Detector{VersionFile: versionFile}
}

// Detect returns Nvidia(version) when the version file is present and
// parseable, Mesa when it is absent, and a *DetectionError when it is present
// but unrecognized.
func (d *Detector) Detect() (Driver, error) {
	data, err := os.ReadFile(d.VersionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Mesa(), nil
		}
		return Driver{}, fmt.Errorf("reading NVIDIA version: %w", err)
	}

	version, ok := ParseKernelModuleVersion(string(data))
	if !ok {
		return Driver{}, &DetectionError{Path: d.VersionFile, Content: string(data)}
	}
	return Nvidia(version), nil
}

// ParseKernelModuleVersion extracts the version following "Kernel Module".
func ParseKernelModuleVersion(text string) (string, bool) {
	m := kernelModulePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Validate reports whether the override is self-consistent.
func (o Override) Validate() error {
	if o.ForceMesa && o.NvidiaVersion != "" {
		return ErrConflictingOverride
	}
	return nil
}

// IsSet reports whether the override bypasses detection.
func (o Override) IsSet() bool {
	return o.ForceMesa || o.NvidiaVersion != ""
}

// Pick returns the overridden driver when one is set, and otherwise runs detection.
func (d *Detector) Pick(o Override) (Driver, error) {
	if err := o.Validate(); err != nil {
		return Driver{}, err
	}
	switch {
	case o.NvidiaVersion != "":
		version := strings.TrimSpace(o.NvidiaVersion)
		if version == "" {
			return Driver{}, ErrEmptyVersion
		}
		if !versionPattern.MatchString(version) {
			return Driver{}, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
		}
		return Nvidia(version), nil
	case o.ForceMesa:
		return Mesa(), nil
	default:
		return d.Detect()
	}
}
