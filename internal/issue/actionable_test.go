// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "list instances"}, "failed to list instances"},
		{
			"with resource",
			&ActionableError{Operation: "remove instance", Resource: "3.12.4"},
			"failed to remove instance: 3.12.4",
		},
		{
			"with cause",
			&ActionableError{Operation: "install Python 3.12", Resource: "x86_64-unknown-linux-gnu", Cause: errors.New("boom")},
			"failed to install Python 3.12: x86_64-unknown-linux-gnu: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_UnwrapChain(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().WithOperation("load pin").Wrap(fs.ErrNotExist).BuildError()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is(err, fs.ErrNotExist) = false for %v", err)
	}
	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Operation != "load pin" {
		t.Errorf("errors.As() = %+v", ae)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions",
			err: &ActionableError{
				Operation:   "create environment",
				Resource:    "dev",
				Suggestions: []string{"Run 'pyrt venv list'", "Check disk space"},
			},
			contains: []string{"failed to create environment: dev", "• Run 'pyrt venv list'", "• Check disk space"},
		},
		{
			name: "chain hidden unless verbose",
			err: &ActionableError{
				Operation: "read configuration",
				Cause:     errors.New("syntax error"),
			},
			contains: []string{"failed to read configuration: syntax error"},
			excludes: []string{"Error chain:"},
		},
		{
			name: "nested chain",
			err: &ActionableError{
				Operation: "run script",
				Cause: &ActionableError{
					Operation: "start interpreter",
					Cause:     errors.New("exec format error"),
				},
			},
			verbose: true,
			contains: []string{
				"Error chain:",
				"1. failed to start interpreter: exec format error",
				"2. exec format error",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\ngot:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() contains %q\ngot:\n%s", s, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should be nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil interface", err)
	}

	ae := NewErrorContext().
		WithOperation("download asset").
		WithResource("cpython-3.12.4.tar.gz").
		WithSuggestion("Check your network").
		WithSuggestions("Retry", "Use --verbose").
		WithHelp(DownloadFailedId).
		Build()
	if ae == nil {
		t.Fatal("Build() = nil")
	}
	if len(ae.Suggestions) != 3 || !ae.HasSuggestions() {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.Help != DownloadFailedId {
		t.Errorf("Help = %d", ae.Help)
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "x") != nil {
		t.Error("WrapWithOperation(nil) should be nil")
	}
	cause := errors.New("denied")
	ae := WrapWithOperation(cause, "write pin")
	if ae.Operation != "write pin" || !errors.Is(ae, cause) {
		t.Errorf("WrapWithOperation() = %+v", ae)
	}
}
