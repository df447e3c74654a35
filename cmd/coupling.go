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

	"github.com/spf13/cobra"

	"github.com/garrettyarmo/forge/internal/config"
	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/survey/coupling"
)

var couplingApply bool

var couplingCmd = &cobra.Command{
	Use:   "coupling",
	Short: "Analyze implicit coupling on the saved knowledge graph",
	Long: `Runs the coupling analyzer against the saved graph: builds the
resource access map, infers ownership, derives implicit coupling relations
with risk classification, and reports the findings. With --apply, the
inferred edges are written back into the graph file.`,
	RunE: runCoupling,
}

func init() {
	couplingCmd.Flags().BoolVar(&couplingApply, "apply", false, "write the inferred edges back to the graph file")
	rootCmd.AddCommand(couplingCmd)
}

func runCoupling(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}

	g, err := graph.Load(cfg.Storage.GraphPath)
	if err != nil {
		return fmt.Errorf("no graph at %s; run 'forge survey' first: %w", cfg.Storage.GraphPath, err)
	}

	analyzer := coupling.NewAnalyzer(g, log)
	result := analyzer.Analyze()

	for _, assignment := range result.OwnershipAssignments {
		cmd.Printf("owns: %s -> %s  (%s, confidence %.2f)\n",
			assignment.Owner.Name, assignment.Resource.Name,
			assignment.Reason, assignment.Confidence)
	}
	for _, c := range result.ImplicitCouplings {
		marker := " "
		if c.Risk == coupling.RiskHigh {
			marker = "⚠"
		}
		cmd.Printf("%s %s coupling: %s <-> %s (%d shared resources)\n",
			marker, c.Risk, c.ServiceA.Name, c.ServiceB.Name, len(c.SharedResources))
		cmd.Printf("    %s\n", c.Reason)
	}
	cmd.Printf("%d ownership assignments, %d couplings, %d shared reads, %d shared writes\n",
		len(result.OwnershipAssignments), len(result.ImplicitCouplings),
		len(result.SharedReads), len(result.SharedWrites))

	if couplingApply {
		if err := result.ApplyToGraph(g); err != nil {
			return err
		}
		if err := g.Save(cfg.Storage.GraphPath); err != nil {
			return err
		}
		cmd.Printf("Graph updated: %s\n", cfg.Storage.GraphPath)
	}
	return nil
}
