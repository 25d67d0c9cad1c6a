// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package launcher activates a named environment and runs a target script
// from the launcher's own directory.
//
// A run passes five checkpoints in order: activation script present,
// activation succeeded, launcher directory resolved, launcher directory
// usable, target script present. The first failing checkpoint ends the run
// with a console message and a distinct exit code. When the target runs, its
// exit code becomes the launcher's.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/envlaunch/internal/activate"
	"github.com/pdiddy/envlaunch/internal/console"
	"github.com/pdiddy/envlaunch/internal/process"
	"github.com/pdiddy/envlaunch/pkg/types"
)

// Exit codes for each failure kind.
const (
	ExitOK                   = 0
	ExitInternal             = 1
	ExitConfigurationMissing = 2
	ExitDirectoryFailed      = 3
	ExitTargetMissing        = 4
	ExitChildStartFailed     = 5
)

// Kind classifies a launcher failure.
type Kind int

const (
	// ConfigurationMissing: the activation script is absent or activation
	// itself failed.
	ConfigurationMissing Kind = iota + 1
	// DirectoryResolutionFailed: the launcher's own directory could not be
	// resolved or used as the working directory.
	DirectoryResolutionFailed
	// TargetScriptMissing: the target script is absent.
	TargetScriptMissing
	// ChildStartFailed: the interpreter could not be found or started.
	ChildStartFailed
)

func (k Kind) String() string {
	switch k {
	case ConfigurationMissing:
		return "configuration missing"
	case DirectoryResolutionFailed:
		return "directory resolution failed"
	case TargetScriptMissing:
		return "target script missing"
	case ChildStartFailed:
		return "child start failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ExitCode returns the process exit code reported for k.
func (k Kind) ExitCode() int {
	switch k {
	case ConfigurationMissing:
		return ExitConfigurationMissing
	case DirectoryResolutionFailed:
		return ExitDirectoryFailed
	case TargetScriptMissing:
		return ExitTargetMissing
	case ChildStartFailed:
		return ExitChildStartFailed
	default:
		return ExitInternal
	}
}

// Error is a failed checkpoint. Path is the path the checkpoint tried.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so callers can test
// errors.Is(err, &launcher.Error{Kind: launcher.TargetScriptMissing}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Plan holds the paths resolved for one run.
type Plan struct {
	ActivationPath string
	ScriptDir      string
	TargetPath     string
	Interpreter    string
}

// Result is the outcome of one run.
type Result struct {
	Plan Plan

	// Err is the failed checkpoint, or nil.
	Err *Error

	// ChildRan reports whether the target script was started.
	ChildRan bool

	// ChildExitCode is the target's exit code when ChildRan.
	ChildExitCode int
}

// ExitCode is the launcher's process exit code for r.
func (r Result) ExitCode() int {
	if r.Err != nil {
		return r.Err.Kind.ExitCode()
	}
	if r.ChildRan {
		return r.ChildExitCode
	}
	return ExitOK
}

// Launcher runs the configured target script inside the configured environment.
type Launcher struct {
	cfg     types.LaunchConfig
	exec    process.Executor
	console *console.Console
	log     logrus.FieldLogger

	stdin          io.Reader
	stdout, stderr io.Writer

	// detectShell picks the activation shell. It runs only once the
	// activation script is known to exist.
	detectShell func() (activate.Shell, error)
	// executable returns the launcher's own path.
	executable func() (string, error)
	// lookPath resolves the interpreter in the activated environment.
	lookPath func(file string, env []string) (string, error)
}

// Option customises a Launcher.
type Option func(*Launcher)

// WithShell uses sh for activation instead of detecting the platform shell.
func WithShell(sh activate.Shell) Option {
	return func(l *Launcher) {
		l.detectShell = func() (activate.Shell, error) { return sh, nil }
	}
}

// WithShellDetector replaces platform shell detection.
func WithShellDetector(fn func() (activate.Shell, error)) Option {
	return func(l *Launcher) { l.detectShell = fn }
}

// WithExecutor replaces the process executor used for the target script.
func WithExecutor(e process.Executor) Option {
	return func(l *Launcher) { l.exec = e }
}

// WithExecutable replaces the function that reports the launcher's own path.
func WithExecutable(fn func() (string, error)) Option {
	return func(l *Launcher) { l.executable = fn }
}

// WithInterpreterLookup replaces interpreter resolution.
func WithInterpreterLookup(fn func(file string, env []string) (string, error)) Option {
	return func(l *Launcher) { l.lookPath = fn }
}

// WithStdio sets the target script's standard streams.
func WithStdio(in io.Reader, out, errOut io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = in, out, errOut
	}
}

// WithLogger sets the debug logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Launcher) { l.log = log }
}

// New returns a Launcher for cfg. Messages for the operator go to con.
func New(cfg types.LaunchConfig, con *console.Console, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:         cfg,
		exec:        process.OS{},
		console:     con,
		log:         logrus.StandardLogger(),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		detectShell: activate.DetectShell,
		executable:  os.Executable,
		lookPath:    process.LookPathIn,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one launch. It never pauses; pausing is the caller's concern.
func (l *Launcher) Run(ctx context.Context) Result {
	var res Result
	res.Plan.ActivationPath = l.cfg.ActivationPath

	fail := func(kind Kind, path string, err error) Result {
		res.Err = &Error{Kind: kind, Path: path, Err: err}
		l.log.WithError(res.Err).WithField("exit_code", res.ExitCode()).Debug("launch aborted")
		return res
	}

	// 1. Activation script present.
	if _, err := os.Stat(l.cfg.ActivationPath); err != nil {
		l.console.Errorf("Activation script not found: %s", l.cfg.ActivationPath)
		l.console.Infof("Set activation_path in envlaunch.yaml or the ENVLAUNCH_ACTIVATION_PATH environment variable to the correct location.")
		return fail(ConfigurationMissing, l.cfg.ActivationPath, err)
	}

	// 2. Activation succeeded.
	sh, err := l.detectShell()
	if err != nil {
		l.console.Errorf("Cannot run activation script %s: %v", l.cfg.ActivationPath, err)
		return fail(ConfigurationMissing, l.cfg.ActivationPath, err)
	}
	l.log.WithFields(logrus.Fields{
		"shell":       sh.Name(),
		"script":      l.cfg.ActivationPath,
		"environment": l.cfg.EnvironmentName,
	}).Debug("activating environment")
	env, err := sh.Activate(ctx, l.cfg.ActivationPath, l.cfg.EnvironmentName, l.stderr)
	if err != nil {
		l.console.Errorf("Failed to activate environment %q with %s", l.cfg.EnvironmentName, l.cfg.ActivationPath)
		l.console.Infof("Check that the environment exists and that activation_path points to the right environment manager.")
		return fail(ConfigurationMissing, l.cfg.ActivationPath, err)
	}
	l.log.WithField("PATH", env.Get("PATH")).Debug("environment activated")

	// 3. Launcher directory resolved.
	dir, err := l.scriptDir()
	if err != nil {
		l.console.Errorf("Could not resolve the launcher directory: %v", err)
		return fail(DirectoryResolutionFailed, dir, err)
	}
	res.Plan.ScriptDir = dir

	// 4. Launcher directory usable as the child's working directory.
	if err := checkDir(dir); err != nil {
		l.console.Errorf("Failed to change directory to %s", dir)
		return fail(DirectoryResolutionFailed, dir, err)
	}

	// 5. Target script present.
	target := l.cfg.TargetScript
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	res.Plan.TargetPath = target
	if _, err := os.Stat(target); err != nil {
		l.console.Errorf("%s not found in %s", filepath.Base(target), filepath.Dir(target))
		return fail(TargetScriptMissing, target, err)
	}

	interp, err := l.lookPath(l.cfg.Interpreter, env)
	if err != nil {
		l.console.Errorf("Interpreter %q not found in environment %q", l.cfg.Interpreter, l.cfg.EnvironmentName)
		return fail(ChildStartFailed, l.cfg.Interpreter, err)
	}
	res.Plan.Interpreter = interp

	cmd := process.Cmd{
		Name:   interp,
		Args:   []string{target},
		Dir:    dir,
		Env:    env,
		Stdin:  l.stdin,
		Stdout: l.stdout,
		Stderr: l.stderr,
	}
	l.log.WithField("dir", dir).Debugf("running %s", cmd)
	code, err := l.exec.Run(ctx, cmd)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		l.console.Errorf("Failed to start %s: %v", cmd, err)
		return fail(ChildStartFailed, interp, err)
	}
	res.ChildRan = true
	res.ChildExitCode = code
	if err != nil {
		// Started but did not exit normally, e.g. killed by a signal.
		l.log.WithError(err).Debug("target script terminated abnormally")
		if code <= 0 {
			res.ChildExitCode = ExitInternal
		}
	}
	l.log.WithField("exit_code", res.ChildExitCode).Debug("target script finished")
	return res
}

// scriptDir returns the absolute, symlink-resolved directory of the launcher
// executable.
func (l *Launcher) scriptDir() (string, error) {
	exe, err := l.executable()
	if err != nil {
		return "", fmt.Errorf("locating launcher executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir, err := filepath.Abs(filepath.Dir(exe))
	if err != nil {
		return filepath.Dir(exe), fmt.Errorf("resolving %s: %w", exe, err)
	}
	return dir, nil
}

// checkDir verifies dir can serve as a working directory: it exists, is a
// directory, and can be listed.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
