// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"maps"
	"time"
)

// Process priority levels, expressed as POSIX nice values.
const (
	PriorityHigh        Priority = -10
	PriorityAboveNormal Priority = -5
	PriorityNormal      Priority = 0
	PriorityBelowNormal Priority = 10
	PriorityIdle        Priority = 19
)

type (
	// Priority is the scheduling priority applied to a started process.
	Priority int

	// StdinSupplier is polled repeatedly while the process runs. Each call
	// returning ok=true writes line followed by a newline; ok=false closes stdin.
	// ctx is canceled once the process exits or the run is canceled; a
	// supplier that blocks must return when it is.
	StdinSupplier func(ctx context.Context) (line string, ok bool)

	// LineHandler receives one line of output without its trailing newline.
	// Stdout and stderr handlers may be invoked concurrently with each other.
	LineHandler func(line string)

	// Command describes a single process invocation.
	Command struct {
		// Executable is the program to run. It is never interpreted by a shell.
		Executable string
		// Args are passed to the program as discrete arguments.
		Args []string
		// WorkDir overrides the working directory when set.
		WorkDir string
		// Env is overlaid on top of the inherited host environment.
		Env map[string]string
		// Priority is applied right after the process starts.
		Priority Priority
		// Timeout bounds the call when positive; it composes with the caller's context.
		Timeout time.Duration
		// Stdin feeds the process; nil connects stdin to the null device.
		Stdin StdinSupplier
		// OnStdout receives each stdout line as it arrives.
		OnStdout LineHandler
		// OnStderr receives each stderr line as it arrives.
		OnStderr LineHandler
	}

	// CallOption adjusts a Command built by an Interpreter.
	CallOption func(*Command)
)

// WithWorkDir sets the working directory for the call.
func WithWorkDir(dir string) CallOption {
	return func(c *Command) {
		c.WorkDir = dir
	}
}

// WithEnv overlays environment variables for the call. Repeated use merges,
// with later values winning.
func WithEnv(env map[string]string) CallOption {
	return func(c *Command) {
		if len(env) == 0 {
			return
		}
		if c.Env == nil {
			c.Env = make(map[string]string, len(env))
		}
		maps.Copy(c.Env, env)
	}
}

// WithTimeout bounds the call.
func WithTimeout(d time.Duration) CallOption {
	return func(c *Command) {
		c.Timeout = d
	}
}

// WithPriority sets the process priority for the call.
func WithPriority(p Priority) CallOption {
	return func(c *Command) {
		c.Priority = p
	}
}

// WithStdin attaches a stdin supplier.
func WithStdin(s StdinSupplier) CallOption {
	return func(c *Command) {
		c.Stdin = s
	}
}

// WithStdinLines feeds the given lines and then closes stdin.
func WithStdinLines(lines ...string) CallOption {
	return WithStdin(LinesSupplier(lines...))
}

// WithOutputHandlers attaches per-line handlers; either may be nil.
func WithOutputHandlers(stdout, stderr LineHandler) CallOption {
	return func(c *Command) {
		c.OnStdout = stdout
		c.OnStderr = stderr
	}
}

// LinesSupplier returns a StdinSupplier that yields lines in order and then
// closes stdin.
func LinesSupplier(lines ...string) StdinSupplier {
	i := 0
	return func(context.Context) (string, bool) {
		if i >= len(lines) {
			return "", false
		}
		line := lines[i]
		i++
		return line, true
	}
}

func (c Command) apply(opts []CallOption) Command {
	if c.Env != nil {
		c.Env = maps.Clone(c.Env)
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
