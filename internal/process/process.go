// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package process abstracts child-process execution so callers can be tested
// without spawning real programs.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Cmd describes a single child-process invocation.
type Cmd struct {
	// Name is the program to run. It is resolved with LookPath unless it
	// already contains a path separator.
	Name string
	Args []string

	// Dir is the child's working directory. Empty means inherit.
	Dir string

	// Env is the full child environment as KEY=VALUE pairs. Nil means
	// inherit the launcher's environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for log output.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Executor runs child processes.
type Executor interface {
	// LookPath resolves file against the launcher's own PATH.
	LookPath(file string) (string, error)

	// Output runs c and returns its standard output. c.Stdout is ignored.
	Output(ctx context.Context, c Cmd) ([]byte, error)

	// Run runs c to completion with its stdio wired as given and returns the
	// child's exit code. A non-nil error means the child did not run to a
	// normal exit (could not start, was killed, or ctx was cancelled).
	Run(ctx context.Context, c Cmd) (int, error)
}

// OS is the production Executor backed by os/exec.
type OS struct{}

func (OS) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (OS) Output(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := command(ctx, c)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.Bytes(), err
}

func (OS) Run(ctx context.Context, c Cmd) (int, error) {
	cmd := command(ctx, c)
	cmd.Stdout = c.Stdout
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		// A normal nonzero exit is the child's business, not ours.
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
	}
	return ExitCode(err), fmt.Errorf("running %s: %w", c.Name, err)
}

func command(ctx context.Context, c Cmd) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stderr = c.Stderr
	return cmd
}

// ExitCode maps a process error to an exit status: 0 for nil, the child's
// status for *exec.ExitError, and -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Getenv returns the value of key in env, a KEY=VALUE slice. Later entries win.
// Keys compare case-insensitively on Windows.
func Getenv(env []string, key string) string {
	var val string
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if k == key || (runtime.GOOS == "windows" && strings.EqualFold(k, key)) {
			val = v
		}
	}
	return val
}

// LookPathIn resolves file against the PATH carried in env rather than the
// launcher's own environment. Only absolute PATH entries are searched. On
// Windows the extensions in env's PATHEXT are tried as well.
func LookPathIn(file string, env []string) (string, error) {
	return lookPathIn(runtime.GOOS, file, env)
}

func lookPathIn(goos, file string, env []string) (string, error) {
	exts := []string{""}
	if goos == "windows" && filepath.Ext(file) == "" {
		pathext := Getenv(env, "PATHEXT")
		if pathext == "" {
			pathext = ".COM;.EXE;.BAT;.CMD"
		}
		exts = nil
		for _, e := range strings.Split(strings.ToLower(pathext), ";") {
			if e != "" {
				exts = append(exts, e)
			}
		}
	}

	if strings.ContainsRune(file, filepath.Separator) || strings.ContainsRune(file, '/') {
		for _, ext := range exts {
			if isExecutable(goos, file+ext) {
				return file + ext, nil
			}
		}
		return "", fmt.Errorf("%s: %w", file, exec.ErrNotFound)
	}

	for _, dir := range filepath.SplitList(Getenv(env, "PATH")) {
		// Relative entries would resolve against the launcher's cwd and the
		// bare name would be looked up again on the launcher's own PATH.
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		for _, ext := range exts {
			candidate := filepath.Join(dir, file+ext)
			if isExecutable(goos, candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%s not found in activated PATH: %w", file, exec.ErrNotFound)
}

func isExecutable(goos, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
