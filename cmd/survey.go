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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/garrettyarmo/forge/internal/config"
	"github.com/garrettyarmo/forge/internal/survey"
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Survey the configured repositories and build the knowledge graph",
	Long: `Surveys every configured repository: detects languages, runs the
applicable parsers, folds the discoveries into the knowledge graph, runs
the implicit coupling analysis, and writes the graph and survey state files.`,
	RunE: runSurvey,
}

func init() {
	surveyCmd.Flags().Bool("incremental", false, "skip repositories whose commit is unchanged since the last survey")
	_ = viper.BindPFlag("survey.incremental", surveyCmd.Flags().Lookup("incremental"))
	rootCmd.AddCommand(surveyCmd)
}

func runSurvey(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.Repos) == 0 {
		return fmt.Errorf("no repositories configured; add a repos section to .forge.yaml")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}

	s := survey.New(cfg, log)
	g, report, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}

	verbose := viper.GetBool("verbose")
	for _, repo := range report.Repos {
		switch {
		case repo.Err != nil:
			cmd.Printf("✗ %s: %v\n", repo.Repo, repo.Err)
		case repo.Skipped:
			cmd.Printf("- %s: unchanged (%s)\n", repo.Repo, shortSHA(repo.CommitSHA))
		default:
			cmd.Printf("✓ %s: %d discoveries (%s)\n", repo.Repo, repo.DiscoveryCount, shortSHA(repo.CommitSHA))
			if verbose && len(repo.DetectedLanguages) > 0 {
				cmd.Printf("    languages: %s\n", strings.Join(repo.DetectedLanguages, ", "))
			}
		}
	}

	if verbose {
		for _, assignment := range report.Coupling.OwnershipAssignments {
			cmd.Printf("    ownership: %s -> %s (%s, %.2f)\n",
				assignment.Owner.Name, assignment.Resource.Name,
				assignment.Reason, assignment.Confidence)
		}
	}
	for _, c := range report.Coupling.HighRiskCouplings() {
		cmd.Printf("⚠ high-risk coupling: %s <-> %s: %s\n", c.ServiceA.Name, c.ServiceB.Name, c.Reason)
	}

	summary := g.Summary()
	cmd.Printf("Graph: %d nodes, %d edges -> %s\n",
		summary.TotalNodes, summary.TotalEdges, cfg.Storage.GraphPath)
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
