// Package config loads the runtime's YAML configuration, grounded on
// _examples/kadirpekel-hector/config/config.go's decode-then-expand
// pattern but trimmed to the four concerns this runtime actually has:
// logging, the shell tool's sandbox, the file tool's root, and the
// atomic-task template directory.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape decoded from a YAML config file.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Shell   ShellConfig   `yaml:"shell"`
	File    FileConfig    `yaml:"file"`
	Tasks   TasksConfig   `yaml:"tasks"`
}

// RuntimeConfig covers the logger package's Init parameters (spec.md's
// ambient stack §A).
type RuntimeConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // simple, verbose
}

// ShellConfig mirrors tools.ShellConfig's fields so a decoded YAML
// document can be handed straight to tools.NewShellTool.
type ShellConfig struct {
	WorkingDirectory string   `yaml:"working_directory"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	AllowedCommands  []string `yaml:"allowed_commands"`
}

// FileConfig mirrors tools.FileConfig's fields.
type FileConfig struct {
	RootDir      string `yaml:"root_dir"`
	MaxBytesEach int    `yaml:"max_bytes_each"`
}

// TasksConfig names the directory of atomic-task template files loaded at
// startup and, when Watch is set, kept live by a task.DirWatcher.
type TasksConfig struct {
	TemplateDir string `yaml:"template_dir"`
	Watch       bool   `yaml:"watch"`
}

// Default returns the zero-config fallback: info/simple logging, no shell
// allowlist, current directory for both tools, no template directory.
func Default() Config {
	return Config{
		Runtime: RuntimeConfig{LogLevel: "info", LogFormat: "simple"},
		Shell:   ShellConfig{WorkingDirectory: ".", TimeoutSeconds: 30},
		File:    FileConfig{RootDir: "."},
	}
}

// Load reads and decodes a YAML config file at path, expanding
// ${ENV_VAR} references in every string field before returning.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	expanded := ExpandEnvVarsInData(data).(map[string]any)

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return Config{}, fmt.Errorf("config: re-encoding expanded %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(reencoded, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first structural problem found in cfg, the check
// behind the CLI's `validate` subcommand (SPEC_FULL.md §A).
func Validate(cfg Config) error {
	if cfg.Shell.TimeoutSeconds < 0 {
		return fmt.Errorf("config: shell.timeout_seconds must not be negative")
	}
	if cfg.File.MaxBytesEach < 0 {
		return fmt.Errorf("config: file.max_bytes_each must not be negative")
	}
	switch cfg.Runtime.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: runtime.log_level %q is not one of debug/info/warn/error", cfg.Runtime.LogLevel)
	}
	return nil
}
