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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), ".forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	return Load()
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := loadFromYAML(t, `
repos:
  - name: acme/user-service
    path: /tmp/repos/user-service
`)
	require.NoError(t, err)

	assert.Equal(t, DefaultGraphPath, cfg.Storage.GraphPath)
	assert.Equal(t, DefaultStatePath, cfg.Storage.StatePath)
	assert.Equal(t, 30, cfg.Survey.StalenessDays)
	assert.Equal(t, "text", cfg.Logging.Format)

	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, "acme/user-service", cfg.Repos[0].Name)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := loadFromYAML(t, `
repos:
  - name: acme/user-service
    path: /tmp/repos/user-service
  - name: acme/billing
    path: /tmp/repos/billing
survey:
  staleness_days: 14
  token_budget: 80000
  incremental: true
languages:
  exclude:
    - terraform
storage:
  graph_path: out/graph.json
  state_path: out/state.json
`)
	require.NoError(t, err)

	assert.Len(t, cfg.Repos, 2)
	assert.Equal(t, 14, cfg.Survey.StalenessDays)
	assert.Equal(t, 80000, cfg.Survey.TokenBudget)
	assert.True(t, cfg.Survey.Incremental)
	assert.Equal(t, []string{"terraform"}, cfg.Languages.Exclude)
	assert.Equal(t, "out/graph.json", cfg.Storage.GraphPath)
}

func TestLoadRejectsRepoWithoutName(t *testing.T) {
	_, err := loadFromYAML(t, `
repos:
  - path: /tmp/repos/unnamed
`)
	assert.Error(t, err)
}

func TestLoadRejectsRepoWithoutPath(t *testing.T) {
	_, err := loadFromYAML(t, `
repos:
  - name: acme/no-path
`)
	assert.Error(t, err)
}

func TestGitHubTokenFromEnv(t *testing.T) {
	t.Setenv("FORGE_GITHUB_TOKEN", "ghp_test")
	assert.Equal(t, "ghp_test", GitHubToken())
}

func TestEnsureStorageDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Storage: StorageConfig{
			GraphPath: filepath.Join(dir, "out", "graph.json"),
			StatePath: filepath.Join(dir, "out", "state.json"),
		},
	}
	require.NoError(t, EnsureStorageDirs(cfg))

	info, err := os.Stat(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
