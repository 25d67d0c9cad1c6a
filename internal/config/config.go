// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config resolves the launcher configuration from defaults, an
// optional envlaunch.yaml file, and ENVLAUNCH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/envlaunch/pkg/types"
)

const (
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "ENVLAUNCH"
	// EnvConfigFile names an explicit config file, bypassing discovery.
	EnvConfigFile = EnvPrefix + "_CONFIG"
	// FileName is the config file base name searched for (without extension).
	FileName = "envlaunch"
)

// Keys recognised in the config file and as ENVLAUNCH_<KEY> variables.
const (
	KeyActivationPath  = "activation_path"
	KeyToolchainDir    = "toolchain_dir"
	KeyEnvironmentName = "environment_name"
	KeyTargetScript    = "target_script"
	KeyInterpreter     = "interpreter"
	KeyPause           = "pause"
	KeyLogLevel        = "log_level"
)

// SetDefaults registers the default value of every key on v. Defaults also
// make AutomaticEnv overrides visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyActivationPath, "")
	v.SetDefault(KeyToolchainDir, types.DefaultToolchainDir)
	v.SetDefault(KeyEnvironmentName, types.DefaultEnvironmentName)
	v.SetDefault(KeyTargetScript, types.DefaultTargetScript)
	v.SetDefault(KeyInterpreter, types.DefaultInterpreter)
	v.SetDefault(KeyPause, true)
	v.SetDefault(KeyLogLevel, types.DefaultLogLevel)
}

// Setup wires v for file discovery and environment overrides. searchDirs are
// tried in order when ENVLAUNCH_CONFIG is unset. It does not read the file.
func Setup(v *viper.Viper, searchDirs ...string) {
	SetDefaults(v)

	if cfgFile := os.Getenv(EnvConfigFile); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			if dir != "" {
				v.AddConfigPath(dir)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
}

// ReadFile reads the configured file into v. A file that does not exist is not
// an error; it returns the path used, or "" when no file was read.
// An explicit ENVLAUNCH_CONFIG file must exist.
func ReadFile(v *viper.Viper) (string, error) {
	if cfgFile := os.Getenv(EnvConfigFile); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", fmt.Errorf("config file %s from %s: %w", cfgFile, EnvConfigFile, err)
		}
	}

	err := v.ReadInConfig()
	if err == nil {
		return v.ConfigFileUsed(), nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return "", nil
	}
	return "", fmt.Errorf("reading config file %s: %w", v.ConfigFileUsed(), err)
}

// Load builds a LaunchConfig from v. home is the user profile directory used
// to derive the default activation path.
func Load(v *viper.Viper, home string) (types.LaunchConfig, error) {
	var cfg types.LaunchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}

	if cfg.EnvironmentName == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyEnvironmentName)
	}
	if cfg.TargetScript == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyTargetScript)
	}
	if cfg.Interpreter == "" {
		return cfg, fmt.Errorf("%s must not be empty", KeyInterpreter)
	}

	if cfg.ActivationPath == "" {
		if home == "" {
			return cfg, fmt.Errorf("cannot derive %s: home directory unknown; set %s_%s",
				KeyActivationPath, EnvPrefix, "ACTIVATION_PATH")
		}
		cfg.ActivationPath = DefaultActivationPath(runtime.GOOS, home, cfg.ToolchainDir)
	}

	abs, err := filepath.Abs(cfg.ActivationPath)
	if err != nil {
		return cfg, fmt.Errorf("resolving %s %s: %w", KeyActivationPath, cfg.ActivationPath, err)
	}
	cfg.ActivationPath = abs

	return cfg, nil
}

// PauseEnabled reports whether the launcher should pause before exiting. It
// is read before the rest of the configuration is decoded so that a broken
// configuration still leaves its error on screen. A pause value that is not
// a boolean counts as enabled.
func PauseEnabled(v *viper.Viper) bool {
	pause, err := cast.ToBoolE(v.Get(KeyPause))
	if err != nil {
		return true
	}
	return pause
}

// DefaultActivationPath returns the activation script location an environment
// manager installed under home/toolchainDir uses on goos.
func DefaultActivationPath(goos, home, toolchainDir string) string {
	if goos == "windows" {
		return filepath.Join(home, toolchainDir, "Scripts", "activate.bat")
	}
	return filepath.Join(home, toolchainDir, "bin", "activate")
}

// Dump renders cfg as YAML.
func Dump(cfg types.LaunchConfig) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding configuration: %w", err)
	}
	return string(data), nil
}
