// Package config loads the host-process preferences for running quill
// interactively: snapshot auto-load/auto-save behavior and the CLI
// prompt string. The engine library itself takes no configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the preferences read from a YAML file by cmd/quillsh.
type Config struct {
	// SnapshotPath is the file auto-loaded at startup (if it exists)
	// and auto-saved on a clean .exit, when set.
	SnapshotPath string `yaml:"snapshot_path"`

	// PrettySnapshot controls whether saved snapshots are indented.
	PrettySnapshot bool `yaml:"pretty_snapshot"`

	// AutoLoad enables loading SnapshotPath at startup.
	AutoLoad bool `yaml:"auto_load"`

	// AutoSave enables saving to SnapshotPath on .exit.
	AutoSave bool `yaml:"auto_save"`

	// Prompt is the primary REPL prompt string.
	Prompt string `yaml:"prompt"`
}

// Default returns the configuration used when no file is supplied or
// the file does not exist.
func Default() Config {
	return Config{
		PrettySnapshot: true,
		AutoLoad:       false,
		AutoSave:       false,
		Prompt:         "quill> ",
	}
}

// Load reads path as YAML and merges it over Default. A missing file is
// not an error: Default is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "quill> "
	}
	return cfg, nil
}
