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

package cmd

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garrettyarmo/forge/internal/config"
	"github.com/garrettyarmo/forge/internal/survey/incremental"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the survey state for each tracked repository",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	state, err := incremental.LoadOrNew(cfg.Storage.StatePath)
	if err != nil {
		return err
	}

	if state.RepoCount() == 0 {
		cmd.Println("No repositories surveyed yet. Run 'forge survey'.")
		return nil
	}

	names := make([]string, 0, state.RepoCount())
	for name := range state.Repos {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		repo := state.Repos[name]
		status := "ok"
		if !repo.SurveySuccessful {
			status = "FAILED"
		}
		cmd.Printf("%-40s %s  %s  %4d discoveries  [%s]\n",
			name, shortSHA(repo.CommitSHA),
			repo.LastSurveyed.Format(time.RFC3339),
			repo.DiscoveryCount,
			strings.Join(repo.DetectedLanguages, ","))
		if status == "FAILED" {
			cmd.Printf("%-40s last survey failed; will be re-surveyed\n", "")
		}
	}

	cmd.Printf("%d repositories, %d total discoveries\n", state.RepoCount(), state.TotalDiscoveries())
	if state.LastFullSurvey != nil {
		cmd.Printf("Last full survey: %s\n", state.LastFullSurvey.Format(time.RFC3339))
	}
	return nil
}
