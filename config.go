package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/model8cli/m8cli/engine"
)

// Config is the on-disk configuration document. API keys live in the system
// keyring or environment, never here.
type Config struct {
	DefaultModel string `yaml:"default_model"`
	Prompt       string `yaml:"prompt"`

	MaxSteps      int `yaml:"max_steps"`
	AgentMaxSteps int `yaml:"agent_max_steps"`
	MaxRetries    int `yaml:"max_retries"`

	Tools struct {
		Disabled []string `yaml:"disabled"`
	} `yaml:"tools"`

	Security struct {
		BlockedPatterns []string `yaml:"blocked_patterns"`
	} `yaml:"security"`
}

func defaultConfig() Config {
	return Config{
		DefaultModel:  "openrouter",
		Prompt:        "> ",
		MaxSteps:      10,
		AgentMaxSteps: 20,
		MaxRetries:    3,
	}
}

const configFileName = "config.yaml"

// configDir locates the per-user configuration directory, creating it with
// owner-only permissions.
func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		u, uerr := user.Current()
		if uerr != nil {
			return "", err
		}
		dir = filepath.Join(u.HomeDir, ".config")
	}
	dir = filepath.Join(dir, "m8cli")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func loadConfig(dir string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing %s: %w", configFileName, err)
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	if cfg.AgentMaxSteps <= 0 {
		cfg.AgentMaxSteps = 20
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	return cfg, nil
}

// saveConfig writes the config under an advisory lock so concurrent
// invocations cannot interleave writes.
func saveConfig(dir string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, configFileName)
	return withFileLock(path+".lock", func() error {
		return os.WriteFile(path, data, 0o600)
	})
}

func (c Config) toolEnabled(name string) bool {
	for _, disabled := range c.Tools.Disabled {
		if disabled == name {
			return false
		}
	}
	return true
}

// applyDisabledTools removes configured tools from the registry after
// registration, so disabling also covers plugin and MCP tools.
func (c Config) applyDisabledTools(r *engine.Registry) {
	for _, spec := range r.Specs() {
		if !c.toolEnabled(spec.Name) {
			r.Unregister(spec.Name)
		}
	}
}
