// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeVersionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "version")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write version file: %v", err)
	}
	return path
}

func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields mesa", func(t *testing.T) {
		t.Parallel()
		d := NewDetector(filepath.Join(t.TempDir(), "absent"))

		got, err := d.Detect()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind() != KindMesa {
			t.Errorf("Detect() = %v, want Mesa", got)
		}
	})

	t.Run("kernel module version yields nvidia", func(t *testing.T) {
		t.Parallel()
		path := writeVersionFile(t, "NVRM version: NVIDIA UNIX x86_64 Kernel Module  570.133.07  Fri Mar 14 13:12:07 UTC 2025\n"+
			"GCC version:  gcc version 13.3.0 (GCC)\n")

		got, err := NewDetector(path).Detect()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != Nvidia("570.133.07") {
			t.Errorf("Detect() = %v, want %v", got, Nvidia("570.133.07"))
		}
	})

	t.Run("unrecognized content is a hard failure", func(t *testing.T) {
		t.Parallel()
		path := writeVersionFile(t, "NVRM version: something unexpected\n")

		_, err := NewDetector(path).Detect()
		if err == nil {
			t.Fatal("expected error for unparsable version file")
		}
		if !errors.Is(err, ErrDetection) {
			t.Errorf("expected errors.Is(err, ErrDetection), got %v", err)
		}
		var detErr *DetectionError
		if !errors.As(err, &detErr) {
			t.Fatalf("expected *DetectionError, got %T", err)
		}
		if detErr.Path != path {
			t.Errorf("DetectionError.Path = %q, want %q", detErr.Path, path)
		}
	})
}

func TestParseKernelModuleVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"proprietary kernel module", "... Kernel Module  570.133.07  ...", "570.133.07", true},
		{"single space", "Kernel Module 535.183.06", "535.183.06", true},
		{"open kernel module", "NVRM version: NVIDIA UNIX Open Kernel Module for x86_64  565.57.01  Release Build", "565.57.01", true},
		{"no version token", "NVRM version: NVIDIA UNIX x86_64 Kernel Module", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseKernelModuleVersion(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseKernelModuleVersion(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDetector_Pick(t *testing.T) {
	t.Parallel()

	// The version file would yield nvidia; overrides must bypass it.
	path := writeVersionFile(t, "Kernel Module  550.54.14\n")
	d := NewDetector(path)

	tests := []struct {
		name     string
		override Override
		want     Driver
		wantErr  error
	}{
		{"no override detects", Override{}, Nvidia("550.54.14"), nil},
		{"force mesa", Override{ForceMesa: true}, Mesa(), nil},
		{"force nvidia", Override{NvidiaVersion: "570.133.07"}, Nvidia("570.133.07"), nil},
		{"both is rejected", Override{ForceMesa: true, NvidiaVersion: "570.133.07"}, Driver{}, ErrConflictingOverride},
		{"blank nvidia version", Override{NvidiaVersion: "   "}, Driver{}, ErrEmptyVersion},
		{"padded nvidia version", Override{NvidiaVersion: " 570.133.07\n"}, Nvidia("570.133.07"), nil},
		{"quote in nvidia version", Override{NvidiaVersion: `1"; x = "`}, Driver{}, ErrInvalidVersion},
		{"letters in nvidia version", Override{NvidiaVersion: "latest"}, Driver{}, ErrInvalidVersion},
		{"leading dot", Override{NvidiaVersion: ".570"}, Driver{}, ErrInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := d.Pick(tt.override)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Pick() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Pick() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDriver_Describe(t *testing.T) {
	t.Parallel()

	if got := Nvidia("570.133.07").Describe(); got != "nvidia 570.133.07" {
		t.Errorf("Describe() = %q, want %q", got, "nvidia 570.133.07")
	}
	if got := Mesa().Describe(); got != "mesa" {
		t.Errorf("Describe() = %q, want %q", got, "mesa")
	}
	if got := Mesa().Version(); got != "" {
		t.Errorf("Mesa().Version() = %q, want empty", got)
	}
}
