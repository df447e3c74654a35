// Copyright 2025 Forge Authors
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/garrettyarmo/forge/internal/logger"
)

// Config represents the application configuration
type Config struct {
	Repos     []RepoConfig   `mapstructure:"repos" yaml:"repos" validate:"dive"`
	Survey    SurveyConfig   `mapstructure:"survey" yaml:"survey"`
	Languages LanguageConfig `mapstructure:"languages" yaml:"languages"`
	Storage   StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Logging   logger.Config  `mapstructure:"logging" yaml:"logging"`
}

// RepoConfig identifies one repository to survey. Name is the full
// "owner/repo" form (or "local" for unpublished trees); Path is the local
// checkout the repository cache collaborator maintains.
type RepoConfig struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// SurveyConfig holds survey pipeline settings
type SurveyConfig struct {
	StalenessDays int  `mapstructure:"staleness_days" yaml:"staleness_days" validate:"gte=0"`
	TokenBudget   int  `mapstructure:"token_budget" yaml:"token_budget" validate:"gte=0"`
	Incremental   bool `mapstructure:"incremental" yaml:"incremental"`
}

// LanguageConfig controls which language parsers run
type LanguageConfig struct {
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// StorageConfig holds output file locations
type StorageConfig struct {
	GraphPath string `mapstructure:"graph_path" yaml:"graph_path"`
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// Default output locations, relative to the working directory.
const (
	DefaultGraphPath = ".forge/graph.json"
	DefaultStatePath = ".forge/survey-state.json"
)

// Load reads the configuration from viper's resolved config file and
// applies defaults. Call after viper has been initialized by the CLI.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.GraphPath == "" {
		cfg.Storage.GraphPath = DefaultGraphPath
	}
	if cfg.Storage.StatePath == "" {
		cfg.Storage.StatePath = DefaultStatePath
	}
	if cfg.Survey.StalenessDays == 0 {
		cfg.Survey.StalenessDays = 30
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

// Validate checks the configuration using struct tags. Repo paths are not
// probed here: missing paths are reported per-repo during the survey, and
// the cache collaborator may still populate them.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GitHubToken returns the GitHub API token from the environment.
// Tokens are never stored in the config file.
func GitHubToken() string {
	return os.Getenv("FORGE_GITHUB_TOKEN")
}

// EnsureStorageDirs creates the parent directories for the graph and
// state files so writes later in the pipeline cannot fail on a missing dir.
func EnsureStorageDirs(cfg *Config) error {
	for _, p := range []string{cfg.Storage.GraphPath, cfg.Storage.StatePath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}
