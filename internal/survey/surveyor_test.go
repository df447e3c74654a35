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

package survey

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge/internal/config"
	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/logger"
	"github.com/garrettyarmo/forge/internal/survey/incremental"
)

func writeRepoFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

// fixtureRepo lays out a small JavaScript service with a DynamoDB access
// and a Terraform-defined table.
func fixtureRepo(t *testing.T) string {
	dir := filepath.Join(t.TempDir(), "user-service")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeRepoFiles(t, dir, map[string]string{
		"package.json": `{
  "name": "user-service",
  "main": "src/index.js",
  "dependencies": { "express": "^4.18.0" }
}`,
		"src/index.js": `
const express = require('express');
const docClient = require('aws-sdk/clients/dynamodb');

await docClient.get({ TableName: 'users-table', Key: { id: '1' } });
await fetch('https://billing.internal/invoices');
`,
		"src/extra.js": `const axios = require('axios');`,
		"src/more.js":  `const x = 1;`,
		"terraform/main.tf": `
resource "aws_dynamodb_table" "users" {
  name = "users-table"

  tags = {
    Environment = "production"
  }
}
`,
		"terraform/variables.tf": `
variable "region" {
  default = "us-east-1"
}
`,
		"terraform/outputs.tf": `
output "table_name" {
  value = "users-table"
}
`,
	})
	return dir
}

func testConfig(t *testing.T, repoPath string) *config.Config {
	out := t.TempDir()
	return &config.Config{
		Repos: []config.RepoConfig{
			{Name: "acme/user-service", Path: repoPath},
		},
		Survey: config.SurveyConfig{StalenessDays: 30},
		Storage: config.StorageConfig{
			GraphPath: filepath.Join(out, "graph.json"),
			StatePath: filepath.Join(out, "survey-state.json"),
		},
	}
}

func TestSurveyRunBuildsGraphAndPersists(t *testing.T) {
	repoPath := fixtureRepo(t)
	cfg := testConfig(t, repoPath)
	log, err := logger.NewTestLogger()
	require.NoError(t, err)

	g, report, err := New(cfg, log).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	require.Len(t, report.Repos, 1)
	repo := report.Repos[0]
	require.NoError(t, repo.Err)
	assert.False(t, repo.Skipped)
	assert.Greater(t, repo.DiscoveryCount, 0)
	assert.Contains(t, repo.DetectedLanguages, "javascript")
	assert.Contains(t, repo.DetectedLanguages, "terraform")

	// The service node exists with its package.json metadata.
	services := g.NodesByKind(graph.KindService)
	require.NotEmpty(t, services)
	var userService *graph.Node
	for _, svc := range services {
		if svc.DisplayName == "user-service" {
			userService = svc
		}
	}
	require.NotNil(t, userService)
	assert.Equal(t, "express", userService.Attributes["framework"].AsString())

	// The table discovered from code and Terraform deduplicates into one
	// node named users-table.
	var tables []*graph.Node
	for _, db := range g.NodesByKind(graph.KindDatabase) {
		if db.DisplayName == "users-table" {
			tables = append(tables, db)
		}
	}
	require.Len(t, tables, 1)
	assert.Equal(t, "production", tables[0].Attributes["environment"].AsString())

	// Both artifacts are on disk; the graph reloads cleanly.
	loaded, err := graph.Load(cfg.Storage.GraphPath)
	require.NoError(t, err)
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())

	state, err := incremental.LoadState(cfg.Storage.StatePath)
	require.NoError(t, err)
	repoState, ok := state.GetRepo("acme/user-service")
	require.True(t, ok)
	assert.True(t, repoState.SurveySuccessful)
}

func TestSurveyRunRecordsRepoFailure(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing-repo"))
	log, err := logger.NewTestLogger()
	require.NoError(t, err)

	_, report, err := New(cfg, log).Run(context.Background())
	require.NoError(t, err, "a per-repo failure never aborts the pass")

	require.Len(t, report.Repos, 1)
	assert.Error(t, report.Repos[0].Err)

	state, err := incremental.LoadState(cfg.Storage.StatePath)
	require.NoError(t, err)
	repoState, ok := state.GetRepo("acme/user-service")
	require.True(t, ok)
	assert.False(t, repoState.SurveySuccessful)
}

func TestSurveyRunLanguageExclusions(t *testing.T) {
	repoPath := fixtureRepo(t)
	cfg := testConfig(t, repoPath)
	cfg.Languages.Exclude = []string{"terraform"}
	log, err := logger.NewTestLogger()
	require.NoError(t, err)

	g, _, err := New(cfg, log).Run(context.Background())
	require.NoError(t, err)

	// With terraform excluded, no node carries terraform deployment
	// metadata.
	for _, node := range g.Nodes() {
		if v, ok := node.Attributes["deployment_method"]; ok {
			assert.NotEqual(t, "terraform", v.AsString())
		}
	}
}
