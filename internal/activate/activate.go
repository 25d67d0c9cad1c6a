// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package activate runs an environment-manager activation script through the
// platform shell and captures the environment it produces.
//
// Activation scripts mutate the shell that sources them, so the shell runs
// the script, then prints a marker line followed by its full environment.
// Everything after the marker becomes the child environment.
package activate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/pdiddy/envlaunch/internal/process"
)

const (
	shellCmd = "cmd"
	shellSh  = "sh"

	// marker separates activation output from the dumped environment.
	marker = "__ENVLAUNCH_ENVIRONMENT__"
)

// Environment is a KEY=VALUE environment captured after activation.
type Environment []string

// Get returns the value of key.
func (e Environment) Get(key string) string {
	return process.Getenv(e, key)
}

// Shell runs activation scripts.
type Shell interface {
	// Name returns the shell name ("cmd" or "sh").
	Name() string

	// Available reports whether the shell binary exists on PATH.
	Available() bool

	// Activate runs script with envName as its sole argument and returns the
	// resulting environment. Output the script itself prints goes to diag.
	Activate(ctx context.Context, script, envName string, diag io.Writer) (Environment, error)
}

// shell implements Shell for a specific interpreter. cmd.exe and POSIX sh
// differ in binary name, how the activation command line is built, and the
// byte that terminates each entry of the environment dump.
type shell struct {
	name string
	bin  string
	sep  byte
	args func(script, envName string) []string
	exec process.Executor
}

func (s *shell) Name() string { return s.name }

func (s *shell) Available() bool {
	_, err := s.exec.LookPath(s.bin)
	return err == nil
}

func (s *shell) Activate(ctx context.Context, script, envName string, diag io.Writer) (Environment, error) {
	var stderr bytes.Buffer
	out, err := s.exec.Output(ctx, process.Cmd{
		Name:   s.bin,
		Args:   s.args(script, envName),
		Stderr: &stderr,
	})

	env, preamble, found := splitOutput(out, s.sep)
	if diag != nil {
		diag.Write(preamble)
		diag.Write(stderr.Bytes())
	}

	if err != nil {
		return nil, fmt.Errorf("activating %s with %s (exit code %d): %w",
			envName, script, process.ExitCode(err), err)
	}
	if !found {
		return nil, fmt.Errorf("activating %s with %s: environment was not reported", envName, script)
	}
	return env, nil
}

func newCmdShell(exec process.Executor) *shell {
	return &shell{
		name: shellCmd,
		bin:  "cmd.exe",
		sep:  '\n',
		args: func(script, envName string) []string {
			return []string{"/d", "/c", "call", script, envName, "&&", "echo", marker, "&&", "set"}
		},
		exec: exec,
	}
}

// shEnvDump prints the environment as NUL-terminated entries so values may
// contain newlines. awk covers systems whose env lacks -0.
const shEnvDump = `{ env -0 2>/dev/null || awk 'BEGIN{for(k in ENVIRON) printf "%s=%s%c", k, ENVIRON[k], 0}'; }`

func newShShell(exec process.Executor) *shell {
	return &shell{
		name: shellSh,
		bin:  "/bin/sh",
		sep:  0,
		args: func(script, envName string) []string {
			// Positional parameters keep the paths out of the script text so
			// no quoting is needed. POSIX `.` takes no arguments, so the
			// environment name is left as $1 for the sourced script. Sourced
			// output goes to stderr so stdout only carries the marker and
			// the environment.
			body := `script="$1"; set -- "$2"; . "$script" 1>&2 && printf '%s\0' ` + marker + ` && ` + shEnvDump
			return []string{"-c", body, "envlaunch", script, envName}
		},
		exec: exec,
	}
}

// splitOutput separates the environment dump after the marker from whatever
// the activation script printed before it. Entries end with sep; values are
// kept byte for byte apart from the carriage return cmd.exe adds.
func splitOutput(out []byte, sep byte) (env Environment, preamble []byte, found bool) {
	idx := bytes.Index(out, []byte(marker))
	if idx < 0 {
		return nil, out, false
	}
	preamble = out[:idx]

	// The rest of the marker line is echo residue, e.g. a trailing space.
	rest := out[idx+len(marker):]
	if i := bytes.IndexByte(rest, sep); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}

	for _, entry := range bytes.Split(rest, []byte{sep}) {
		if sep == '\n' {
			entry = bytes.TrimSuffix(entry, []byte("\r"))
		}
		// `set` lists a few "=C:" style pseudo-variables; they are skipped.
		if len(entry) == 0 || entry[0] == '=' || bytes.IndexByte(entry, '=') < 0 {
			continue
		}
		env = append(env, string(entry))
	}
	return env, preamble, true
}

var defaultExec process.Executor = process.OS{}

// DetectShell returns the shell used for activation on this platform, or an
// error when it is not available.
func DetectShell() (Shell, error) {
	return detectShell(runtime.GOOS, defaultExec)
}

func detectShell(goos string, exec process.Executor) (Shell, error) {
	var s *shell
	if goos == "windows" {
		s = newCmdShell(exec)
	} else {
		s = newShShell(exec)
	}
	if !s.Available() {
		return nil, fmt.Errorf("no activation shell available: %s not found", s.bin)
	}
	return s, nil
}
