// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("test uses POSIX sh")
	}
}

func sh(script string, opts ...CallOption) Command {
	return Command{Executable: "/bin/sh", Args: []string{"-c", script}}.apply(opts)
}

func TestExecute_SeparatesInterleavedStreams(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var (
		mu       sync.Mutex
		outLines []string
		errLines []string
	)
	cmd := sh(`echo out1; echo err1 >&2; echo out2`, WithOutputHandlers(
		func(l string) { mu.Lock(); outLines = append(outLines, l); mu.Unlock() },
		func(l string) { mu.Lock(); errLines = append(errLines, l); mu.Unlock() },
	))

	res, err := NewCore().Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Stdout != "out1\nout2\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out1\nout2\n")
	}
	if res.Stderr != "err1\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err1\n")
	}
	if !slices.Equal(outLines, []string{"out1", "out2"}) {
		t.Errorf("stdout handler lines = %v", outLines)
	}
	if !slices.Equal(errLines, []string{"err1"}) {
		t.Errorf("stderr handler lines = %v", errLines)
	}
}

func TestExecute_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	res, err := NewCore().Execute(context.Background(), sh(`echo boom >&2; exit 3`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() = true for exit status 3")
	}
	if strings.TrimSpace(res.Stderr) != "boom" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestExecute_StartFailure(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "no-such-binary")
	res, err := NewCore().Execute(context.Background(), Command{Executable: missing})
	if err == nil {
		t.Fatal("Execute() succeeded for a missing executable")
	}
	if res != nil {
		t.Errorf("Result = %+v, want nil", res)
	}
	if !errors.Is(err, ErrStartFailed) {
		t.Errorf("error %v does not wrap ErrStartFailed", err)
	}
	var se *StartError
	if !errors.As(err, &se) || se.Executable != missing {
		t.Errorf("error %v is not a *StartError for %s", err, missing)
	}
}

func TestExecute_TimeoutKillsProcess(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	const timeout = 200 * time.Millisecond
	start := time.Now()
	res, err := NewCore().Execute(context.Background(), sh(`echo started; sleep 30`, WithTimeout(timeout)))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	if elapsed > timeout+5*time.Second {
		t.Errorf("Execute returned after %v, want close to %v", elapsed, timeout)
	}
	if res == nil || res.Stdout != "started\n" {
		t.Errorf("partial result = %+v, want captured %q", res, "started\n")
	}
	var ce *CanceledError
	if !errors.As(err, &ce) || !ce.TimedOut {
		t.Errorf("error %v is not a timed-out *CanceledError", err)
	}
}

func TestExecute_ContextCancel(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := NewCore().Execute(ctx, sh(`sleep 30`))
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("error = %v, want ErrCanceled", err)
	}
	if errors.Is(err, ErrTimedOut) {
		t.Error("external cancellation reported as a timeout")
	}
}

func TestExecute_AlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewCore().Execute(ctx, Command{Executable: "does-not-matter"})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("error = %v, want ErrCanceled", err)
	}
	if res == nil || res.Success() {
		t.Errorf("Result = %+v, want a non-success placeholder", res)
	}
}

func TestExecute_DefaultTimeout(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	core := NewCore(WithDefaultTimeout(150 * time.Millisecond))
	_, err := core.Execute(context.Background(), sh(`sleep 30`))
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
}

func TestExecute_StdinSupplier(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	res, err := NewCore().Execute(context.Background(), sh(`while read -r l; do echo "got:$l"; done`, WithStdinLines("a", "b c")))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Stdout != "got:a\ngot:b c\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExecute_BlockingStdinSupplierReleasedOnExit(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	released := make(chan struct{})
	supplier := func(ctx context.Context) (string, bool) {
		<-ctx.Done()
		close(released)
		return "", false
	}

	res, err := NewCore().Execute(context.Background(), sh(`exit 3`, WithStdin(supplier), WithTimeout(10*time.Second)))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("stdin supplier still blocked after the process exited")
	}
}

func TestExecute_NoStdinDoesNotBlock(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	res, err := NewCore().Execute(context.Background(), sh(`cat; echo done`, WithTimeout(10*time.Second)))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Stdout != "done\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "done\n")
	}
}

func TestExecute_EnvAndWorkDir(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	dir := t.TempDir()
	res, err := NewCore().Execute(context.Background(), sh(`echo "$PYRT_TEST_VAR"; pwd`,
		WithEnv(map[string]string{"PYRT_TEST_VAR": "hello"}),
		WithWorkDir(dir),
	))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("Stdout = %q, want two lines", res.Stdout)
	}
	if lines[0] != "hello" {
		t.Errorf("env overlay = %q, want hello", lines[0])
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(lines[1])
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestExecute_TrailingPartialLine(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var got []string
	_, err := NewCore().Execute(context.Background(), sh(`printf 'a\nb'`, WithOutputHandlers(func(l string) { got = append(got, l) }, nil)))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("lines = %v, want [a b]", got)
	}
}

func TestMergeEnv(t *testing.T) {
	t.Parallel()

	base := []string{"A=1", "B=2", "C=3"}
	got := mergeEnv(base, map[string]string{"B": "20", "Z": "26", "D": "4"})
	want := []string{"A=1", "C=3", "B=20", "D=4", "Z=26"}
	if !slices.Equal(got, want) {
		t.Errorf("mergeEnv = %v, want %v", got, want)
	}

	if got := mergeEnv(base, nil); !slices.Equal(got, base) {
		t.Errorf("mergeEnv with no overlay = %v, want %v", got, base)
	}
}

func TestInterpreter_ValidateAndRun(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	dir := t.TempDir()
	python := filepath.Join(dir, "python3")
	script := "#!/bin/sh\nif [ \"$1\" = --version ]; then echo 'Python 3.12.4'; exit 0; fi\necho \"args:$*\"\n"
	if err := os.WriteFile(python, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	interp := NewInterpreter(NewCore(), python)
	if interp.Name() != NameSubprocess {
		t.Errorf("Name() = %q", interp.Name())
	}
	if err := interp.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	v, err := interp.Version(context.Background())
	if err != nil || v != "Python 3.12.4" {
		t.Errorf("Version() = %q, %v", v, err)
	}

	res, err := interp.ExecuteInline(context.Background(), "print(1)")
	if err != nil {
		t.Fatalf("ExecuteInline() error: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "args:-c print(1)" {
		t.Errorf("Stdout = %q", res.Stdout)
	}

	if _, err := interp.RunScript(context.Background(), filepath.Join(dir, "missing.py"), nil); err == nil {
		t.Error("RunScript() succeeded for a missing script")
	}

	missing := NewInterpreter(NewCore(), filepath.Join(dir, "nope"))
	if missing.Available() {
		t.Error("Available() = true for a missing interpreter")
	}
	if err := missing.Validate(); !errors.Is(err, ErrInterpreterMissing) {
		t.Errorf("Validate() = %v, want ErrInterpreterMissing", err)
	}
}
