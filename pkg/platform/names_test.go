// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"testing"
)

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"CON lowercase", "con", true},
		{"CON mixed case", "Con", true},
		{"COM9", "com9", true},
		{"LPT1", "lpt1", true},
		{"NUL with extension", "NUL.exe", true},
		{"normal name", "myenv", false},
		{"contains reserved", "confile", false},
		{"COM10", "com10", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsWindowsReservedName(tt.input); got != tt.expected {
				t.Errorf("IsWindowsReservedName(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateDirName(t *testing.T) {
	t.Parallel()

	valid := []string{"dev", "my-env", "ml_3.12", "test env"}
	for _, name := range valid {
		if err := ValidateDirName(name); err != nil {
			t.Errorf("ValidateDirName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "  ", ".", "..", "a/b", `a\b`, "c:", "env.", "env ", "aux", "LPT3.txt"}
	for _, name := range invalid {
		err := ValidateDirName(name)
		if err == nil {
			t.Errorf("ValidateDirName(%q) = nil, want error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidDirName) {
			t.Errorf("ValidateDirName(%q) error %v does not wrap ErrInvalidDirName", name, err)
		}
	}
}
