// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config loads monomaker.yaml: workspace defaults, worker count,
// and per-host forge auth tokens (SPEC_FULL "AMBIENT STACK" / Configuration).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level monomaker.yaml shape.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	GitHub    HostConfig      `yaml:"github"`
	GitLab    HostConfig      `yaml:"gitlab"`
	Gitea     HostConfig      `yaml:"gitea"`
}

// WorkspaceConfig holds run-level defaults (spec §5, §6).
type WorkspaceConfig struct {
	Dir           string `yaml:"dir"`
	Workers       int    `yaml:"workers"`
	KeepOnFailure bool   `yaml:"keep_on_failure"`
	MergeTopology bool   `yaml:"merge_topology"`
}

// HostConfig holds a single forge host's auth settings (SPEC_FULL
// SUPPLEMENTED FEATURES "Authenticated clone support").
type HostConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns a Config with the defaults spec §5 names.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Dir:     ".monomaker",
			Workers: 4,
		},
	}
}

// Load reads and parses path, applying environment-variable overrides on
// top of whatever the file sets, mirroring the donor's "defaults struct +
// env-var overrides + file overlay" pattern.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDefault looks for monomaker.yaml in the working directory or
// $HOME/.config/monomaker/config.yaml, falling back to DefaultConfig if
// neither exists.
func LoadDefault() (*Config, error) {
	locations := []string{
		"monomaker.yaml",
		".monomaker.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "monomaker", "config.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		c.GitLab.Token = token
	}
	if token := os.Getenv("GITEA_TOKEN"); token != "" {
		c.Gitea.Token = token
	}
}
