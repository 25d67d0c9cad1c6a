package types

// Default literals used when no configuration overrides them.
const (
	DefaultToolchainDir    = "anaconda3"
	DefaultEnvironmentName = "myenv"
	DefaultTargetScript    = "converter.py"
	DefaultInterpreter     = "python"
	DefaultLogLevel        = "warn"
)

// LaunchConfig holds every setting the launcher reads. Each field can be set
// from envlaunch.yaml or from an ENVLAUNCH_-prefixed environment variable.
type LaunchConfig struct {
	// ActivationPath is the absolute path to the environment activation
	// script. When empty it is derived from the home directory and
	// ToolchainDir.
	ActivationPath string `json:"activation_path" yaml:"activation_path" mapstructure:"activation_path"`

	// ToolchainDir is the directory under the user's home that holds the
	// environment manager (e.g. "anaconda3").
	ToolchainDir string `json:"toolchain_dir" yaml:"toolchain_dir" mapstructure:"toolchain_dir"`

	// EnvironmentName is passed as the sole argument to the activation script.
	EnvironmentName string `json:"environment_name" yaml:"environment_name" mapstructure:"environment_name"`

	// TargetScript is the script to run, relative to the launcher's directory
	// unless absolute.
	TargetScript string `json:"target_script" yaml:"target_script" mapstructure:"target_script"`

	// Interpreter is looked up on the activated environment's PATH.
	Interpreter string `json:"interpreter" yaml:"interpreter" mapstructure:"interpreter"`

	// Pause waits for a keypress before the launcher exits.
	Pause bool `json:"pause" yaml:"pause" mapstructure:"pause"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}
