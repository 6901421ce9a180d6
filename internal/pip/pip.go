// SPDX-License-Identifier: MPL-2.0

// Package pip drives the pip module of an installed interpreter or
// sub-environment through the process runtime.
package pip

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

// DefaultParallelism bounds concurrent pip processes in batch mode.
const DefaultParallelism = 4

// ErrCommandFailed is returned when pip exits non-zero.
var ErrCommandFailed = errors.New("pip command failed")

type (
	// Package is one entry of "pip list --format=json".
	Package struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	// CommandError carries the exit status and stderr of a failed pip call.
	CommandError struct {
		Args     []string
		ExitCode types.ExitCode
		Stderr   string
	}

	// Client runs pip through a Runtime.
	Client struct {
		rt          runtime.Runtime
		logger      *log.Logger
		parallelism int
		indexURL    string
	}

	// Option configures a Client.
	Option func(*Client)
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("pip %s exited with status %s", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Unwrap returns ErrCommandFailed for errors.Is() compatibility.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithParallelism bounds concurrent pip processes in batch mode.
func WithParallelism(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithIndexURL makes installs resolve against url instead of the default index.
func WithIndexURL(url string) Option {
	return func(c *Client) {
		c.indexURL = url
	}
}

// New returns a Client bound to rt.
func New(rt runtime.Runtime, opts ...Option) *Client {
	c := &Client{rt: rt, logger: log.New(io.Discard), parallelism: DefaultParallelism}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Install installs one requirement specifier ("requests", "flask==3.0.0").
func (c *Client) Install(ctx context.Context, requirement string, opts ...runtime.CallOption) error {
	_, err := c.run(ctx, c.installArgs(requirement), opts...)
	return err
}

// InstallRequirements installs from a requirements file.
func (c *Client) InstallRequirements(ctx context.Context, file string, opts ...runtime.CallOption) error {
	_, err := c.run(ctx, c.installArgs("-r", file), opts...)
	return err
}

// InstallMany installs each requirement with its own pip invocation and
// returns a per-requirement result; a nil entry means success. One failure
// never stops the others. With parallel set, up to the configured
// parallelism run at once.
func (c *Client) InstallMany(ctx context.Context, requirements []string, parallel bool) map[string]error {
	results := make(map[string]error, len(requirements))
	if !parallel {
		for _, r := range requirements {
			results[r] = c.Install(ctx, r)
		}
		return results
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.parallelism)
	for _, r := range requirements {
		g.Go(func() error {
			err := c.Install(ctx, r)
			mu.Lock()
			results[r] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return results
}

// Uninstall removes a package without prompting.
func (c *Client) Uninstall(ctx context.Context, name string) error {
	_, err := c.run(ctx, []string{"uninstall", "-y", name})
	return err
}

// List returns the installed packages.
func (c *Client) List(ctx context.Context) ([]Package, error) {
	res, err := c.run(ctx, []string{"list", "--format=json"})
	if err != nil {
		return nil, err
	}
	var pkgs []Package
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &pkgs); err != nil {
		return nil, fmt.Errorf("parsing pip list output: %w", err)
	}
	return pkgs, nil
}

// Freeze returns installed requirements in "name==version" form.
func (c *Client) Freeze(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, []string{"freeze"})
	if err != nil {
		return nil, err
	}
	var reqs []string
	sc := bufio.NewScanner(strings.NewReader(res.Stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reqs = append(reqs, line)
	}
	return reqs, sc.Err()
}

func (c *Client) installArgs(args ...string) []string {
	out := []string{"install"}
	if c.indexURL != "" {
		out = append(out, "--index-url="+c.indexURL)
	}
	return append(out, args...)
}

func (c *Client) run(ctx context.Context, args []string, opts ...runtime.CallOption) (*runtime.Result, error) {
	argv := append([]string{"-m", "pip"}, args...)
	c.logger.Debug("running pip", "args", args)
	res, err := c.rt.ExecuteCommand(ctx, argv, opts...)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return res, &CommandError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
