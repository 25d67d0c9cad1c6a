// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the envlaunch CLI.
// envlaunch takes no arguments: it activates the configured environment,
// runs the target script from its own directory, and pauses before exiting.
package main

import (
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/envlaunch/internal/config"
	"github.com/pdiddy/envlaunch/internal/console"
	"github.com/pdiddy/envlaunch/internal/launcher"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// exitCode is the process exit status chosen by the launch.
	exitCode int
	// pauseOnExit is set once a launch has been attempted and pausing is enabled.
	pauseOnExit bool
	// configErr holds a config file read failure from initConfig.
	configErr error
	// configFileUsed is the config file initConfig read, if any. It is logged
	// once the configured log level is in effect.
	configFileUsed string

	// con receives operator messages and the end-of-run pause.
	con = console.Std()
)

// rootCmd is the base command; running it performs the launch.
var rootCmd = &cobra.Command{
	Use:   "envlaunch",
	Short: "Run a script inside an activated environment",
	Long: `envlaunch activates a named environment with its environment manager's
activation script, then runs a target script (converter.py by default) from
the directory containing envlaunch itself, and waits for a keypress before
exiting so the console window stays open.

Settings come from envlaunch.yaml next to the executable or in
~/.config/envlaunch/, and from ENVLAUNCH_* environment variables:

  ENVLAUNCH_ACTIVATION_PATH   activation script (default <home>/anaconda3/Scripts/activate.bat
                              on Windows, <home>/anaconda3/bin/activate elsewhere)
  ENVLAUNCH_TOOLCHAIN_DIR     directory under <home> holding the environment manager
  ENVLAUNCH_ENVIRONMENT_NAME  environment to activate (default myenv)
  ENVLAUNCH_TARGET_SCRIPT     script to run (default converter.py)
  ENVLAUNCH_INTERPRETER       interpreter for the script (default python)
  ENVLAUNCH_PAUSE             wait for a keypress before exiting (default true)
  ENVLAUNCH_LOG_LEVEL         debug, info, warn, or error (default warn)
  ENVLAUNCH_CONFIG            explicit config file

Exit codes: 0 success, 2 activation missing or failed, 3 launcher directory
unusable, 4 target script missing, 5 interpreter could not be started;
otherwise the target script's own exit code.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLaunch,
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	dirs := []string{launcherDir()}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "envlaunch"))
	}
	config.Setup(viper.GetViper(), dirs...)

	configFileUsed, configErr = config.ReadFile(viper.GetViper())
}

func runLaunch(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	pauseOnExit = config.PauseEnabled(v)

	if configErr != nil {
		con.Errorf("%v", configErr)
		exitCode = launcher.ExitInternal
		return nil
	}

	home, _ := os.UserHomeDir()
	cfg, err := config.Load(v, home)
	if err != nil {
		con.Errorf("Invalid configuration: %v", err)
		exitCode = launcher.ExitInternal
		return nil
	}
	pauseOnExit = cfg.Pause
	setupLogging(con, cfg.LogLevel)

	if configFileUsed != "" {
		logrus.Infof("Using config file: %s", configFileUsed)
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		if dump, err := config.Dump(cfg); err == nil {
			logrus.Debugf("effective configuration:\n%s", dump)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res := launcher.New(cfg, con, launcher.WithLogger(logrus.StandardLogger())).Run(ctx)
	exitCode = res.ExitCode()
	return nil
}

// setupLogging sets the logrus level by name. An unknown level keeps the
// current one and is reported on c.
func setupLogging(c *console.Console, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		c.Warnf("Unknown log_level %q, using %s", level, logrus.GetLevel())
		return
	}
	logrus.SetLevel(lvl)
}

// launcherDir returns the directory holding the running executable, or "" if
// it cannot be determined.
func launcherDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// execute runs the root command with args and returns the process exit code.
func execute(args []string) int {
	exitCode, pauseOnExit = launcher.ExitOK, false
	configErr, configFileUsed = nil, ""

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		con.Errorf("Error: %v", err)
		exitCode = launcher.ExitInternal
	}
	return finish(con)
}

// finish pauses on c when the launch asked for it and returns the exit code.
func finish(c *console.Console) int {
	if pauseOnExit {
		if err := c.Pause(); err != nil {
			logrus.Debugf("pause: %v", err)
		}
	}
	return exitCode
}

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(execute(os.Args[1:]))
}
