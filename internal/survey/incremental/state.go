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

// Package incremental persists per-repo survey state so unchanged commits
// can skip re-parsing, and detects file-level changes between surveys via
// git.
package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateVersion is bumped on breaking state-file changes.
const StateVersion = 1

// RepoState is the per-repository survey record.
type RepoState struct {
	CommitSHA         string    `json:"commit_sha"`
	LastSurveyed      time.Time `json:"last_surveyed"`
	DiscoveryCount    int       `json:"discovery_count"`
	DetectedLanguages []string  `json:"detected_languages"`
	SurveySuccessful  bool      `json:"survey_successful"`
}

// SurveyState is the persistent JSON state keyed by full repo name. It is
// written after the graph file so a failure to persist state never loses
// a successful graph.
type SurveyState struct {
	Version        int                  `json:"version"`
	SurveyID       string               `json:"survey_id,omitempty"`
	LastFullSurvey *time.Time           `json:"last_full_survey,omitempty"`
	LastUpdated    time.Time            `json:"last_updated"`
	Repos          map[string]RepoState `json:"repos"`
}

// NewState creates an empty survey state.
func NewState() *SurveyState {
	return &SurveyState{
		Version:     StateVersion,
		LastUpdated: time.Now().UTC(),
		Repos:       make(map[string]RepoState),
	}
}

// LoadState reads the state file at path.
func LoadState(path string) (*SurveyState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state SurveyState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Repos == nil {
		state.Repos = make(map[string]RepoState)
	}
	return &state, nil
}

// LoadOrNew reads the state file, or returns a fresh state when the file
// does not exist yet.
func LoadOrNew(path string) (*SurveyState, error) {
	state, err := LoadState(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		return nil, err
	}
	return state, nil
}

// Save writes the state file to path, creating parent directories.
func (s *SurveyState) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// GetRepo returns the record for a repo, if present.
func (s *SurveyState) GetRepo(repoName string) (RepoState, bool) {
	repo, ok := s.Repos[repoName]
	return repo, ok
}

// MarkSurveyed writes the per-repo record and bumps last_updated.
func (s *SurveyState) MarkSurveyed(repoName, commitSHA string, discoveryCount int, languages []string, successful bool) {
	s.Repos[repoName] = RepoState{
		CommitSHA:         commitSHA,
		LastSurveyed:      time.Now().UTC(),
		DiscoveryCount:    discoveryCount,
		DetectedLanguages: languages,
		SurveySuccessful:  successful,
	}
	s.LastUpdated = time.Now().UTC()
}

// NeedsSurvey reports whether a repo must be (re)surveyed: never seen,
// previous run failed, or the commit SHA differs.
func (s *SurveyState) NeedsSurvey(repoName, currentSHA string) bool {
	repo, ok := s.Repos[repoName]
	if !ok {
		return true
	}
	if !repo.SurveySuccessful {
		return true
	}
	return repo.CommitSHA != currentSHA
}

// MarkFullSurveyStart records the start of a full survey pass.
func (s *SurveyState) MarkFullSurveyStart() {
	now := time.Now().UTC()
	s.LastFullSurvey = &now
	s.LastUpdated = now
}

// RepoCount returns the number of tracked repositories.
func (s *SurveyState) RepoCount() int { return len(s.Repos) }

// TotalDiscoveries sums the discovery counts across all repositories.
func (s *SurveyState) TotalDiscoveries() int {
	total := 0
	for _, repo := range s.Repos {
		total += repo.DiscoveryCount
	}
	return total
}
