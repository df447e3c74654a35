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

// Package survey orchestrates the pipeline: language detection, parsing,
// graph building, coupling analysis, and incremental state tracking.
// Repositories are surveyed in order; within a repo, file walks and parses
// are sequential. A per-repo failure is recorded and the loop continues.
package survey

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/garrettyarmo/forge/internal/config"
	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/logger"
	"github.com/garrettyarmo/forge/internal/survey/builder"
	"github.com/garrettyarmo/forge/internal/survey/coupling"
	"github.com/garrettyarmo/forge/internal/survey/detector"
	"github.com/garrettyarmo/forge/internal/survey/incremental"
	"github.com/garrettyarmo/forge/internal/survey/parser"
)

// Surveyor runs survey passes over the configured repositories. The
// registry is constructed per surveyor; there is no global state.
type Surveyor struct {
	cfg      *config.Config
	log      logger.Logger
	registry *parser.Registry
}

// RepoReport summarizes one repository's survey for the console line.
type RepoReport struct {
	Repo              string
	CommitSHA         string
	DetectedLanguages []string
	DiscoveryCount    int
	Skipped           bool
	Err               error
}

// Report is the outcome of a full survey pass.
type Report struct {
	SurveyID string
	Repos    []RepoReport
	Coupling *coupling.Result
}

// New creates a surveyor for the given configuration.
func New(cfg *config.Config, log logger.Logger) *Surveyor {
	return &Surveyor{
		cfg:      cfg,
		log:      log.WithComponent("surveyor"),
		registry: parser.NewRegistry(log),
	}
}

// Run surveys every configured repository, runs the coupling analyzer
// over the merged graph, and persists the graph file before the state
// file so a failed state write never loses a successful graph.
func (s *Surveyor) Run(ctx context.Context) (*graph.Graph, *Report, error) {
	state, err := incremental.LoadOrNew(s.cfg.Storage.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load survey state: %w", err)
	}

	report := &Report{SurveyID: uuid.NewString()}
	state.SurveyID = report.SurveyID
	log := s.log.WithFields(logger.String("survey_id", report.SurveyID))

	b := s.newBuilder(log)
	if !s.cfg.Survey.Incremental {
		state.MarkFullSurveyStart()
	}

	for _, repo := range s.cfg.Repos {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		repoReport := s.surveyRepository(repo, b, state, log)
		report.Repos = append(report.Repos, repoReport)

		if repoReport.Err != nil {
			log.Error("repository survey failed",
				logger.String("repo", repo.Name), logger.Error(repoReport.Err))
			state.MarkSurveyed(repo.Name, repoReport.CommitSHA, 0, repoReport.DetectedLanguages, false)
			continue
		}
		if repoReport.Skipped {
			log.Debug("repository unchanged, skipping", logger.String("repo", repo.Name))
			continue
		}
		state.MarkSurveyed(repo.Name, repoReport.CommitSHA,
			repoReport.DiscoveryCount, repoReport.DetectedLanguages, true)
	}

	g := b.Build()

	if stale := countStale(g, s.cfg.Survey.StalenessDays); stale > 0 {
		log.Warn("graph contains stale nodes",
			logger.Int("stale_nodes", stale),
			logger.Int("staleness_days", s.cfg.Survey.StalenessDays))
	}

	// Coupling analysis runs against the merged graph and adds its
	// inferred edges in place.
	analyzer := coupling.NewAnalyzer(g, log)
	result := analyzer.Analyze()
	if err := result.ApplyToGraph(g); err != nil {
		return nil, nil, fmt.Errorf("failed to apply coupling analysis: %w", err)
	}
	report.Coupling = result

	if err := config.EnsureStorageDirs(s.cfg); err != nil {
		return nil, nil, err
	}
	if err := g.Save(s.cfg.Storage.GraphPath); err != nil {
		return nil, nil, err
	}
	if err := state.Save(s.cfg.Storage.StatePath); err != nil {
		// The graph is already on disk; a state write failure only costs
		// incremental skips on the next run.
		log.Error("failed to persist survey state", logger.Error(err))
	}

	return g, report, nil
}

// countStale reports how many nodes were last discovered more than the
// staleness window ago. On a full survey every node is fresh; on an
// incremental run, nodes carried over from skipped repos can age out.
func countStale(g *graph.Graph, days int) int {
	if days <= 0 {
		return 0
	}
	stale := 0
	for _, node := range g.Nodes() {
		if node.Metadata.IsStale(days) {
			stale++
		}
	}
	return stale
}

// newBuilder starts from the previously saved graph when incremental
// survey is enabled, so unchanged repos keep their nodes.
func (s *Surveyor) newBuilder(log logger.Logger) *builder.Builder {
	if s.cfg.Survey.Incremental {
		if g, err := graph.Load(s.cfg.Storage.GraphPath); err == nil {
			return builder.FromGraph(g, log)
		}
	}
	return builder.New(log)
}

// surveyRepository runs detection and every applicable parser over one
// repository.
func (s *Surveyor) surveyRepository(repo config.RepoConfig, b *builder.Builder, state *incremental.SurveyState, log logger.Logger) RepoReport {
	report := RepoReport{Repo: repo.Name}

	if _, err := os.Stat(repo.Path); err != nil {
		report.Err = fmt.Errorf("repository path unreadable: %w", err)
		return report
	}

	commitSHA, err := incremental.CurrentCommit(repo.Path)
	if err != nil {
		// Unversioned local trees are surveyed every time.
		commitSHA = "unknown"
	}
	report.CommitSHA = commitSHA

	detected := detector.DetectLanguages(repo.Path)
	report.DetectedLanguages = detected.Names()

	if s.cfg.Survey.Incremental && commitSHA != "unknown" && !state.NeedsSurvey(repo.Name, commitSHA) {
		report.Skipped = true
		return report
	}

	b.SetRepoContext(repo.Name, commitSHA)

	parsers := s.registry.GetFor(report.DetectedLanguages, s.cfg.Languages.Exclude)
	if len(parsers) == 0 {
		log.Debug("no parsers for detected languages", logger.String("repo", repo.Name))
		return report
	}

	serviceID := s.detectService(repo, b, detected, log)

	for _, p := range parsers {
		discoveries, err := p.ParseRepo(repo.Path)
		if err != nil {
			// Parser-level failures skip that parser, not the repo.
			log.Warn("parser failed",
				logger.String("repo", repo.Name), logger.Error(err))
			continue
		}
		report.DiscoveryCount += len(discoveries)
		b.ProcessDiscoveries(discoveries, serviceID)
	}

	return report
}

// detectService infers the repo's service node from package.json or the
// Python project config, falling back to the repository name.
func (s *Surveyor) detectService(repo config.RepoConfig, b *builder.Builder, detected *detector.Detections, log logger.Logger) graph.NodeID {
	if jsParser, ok := s.registry.Get("javascript"); ok {
		if js, ok := jsParser.(*parser.JavaScriptParser); ok {
			if svc, found := js.ParsePackageJSON(repo.Path); found {
				log.Debug("service from package.json", logger.String("service", svc.Name))
				return b.AddService(*svc)
			}
		}
	}

	if pyParser, ok := s.registry.Get("python"); ok {
		if py, ok := pyParser.(*parser.PythonParser); ok {
			if svc, found := py.ParseProjectConfig(repo.Path); found {
				log.Debug("service from python config", logger.String("service", svc.Name))
				return b.AddService(*svc)
			}
		}
	}

	language := "unknown"
	if langs := detected.Names(); len(langs) > 0 {
		language = langs[0]
	}
	return b.AddService(parser.ServiceDiscovery{
		Name:       filepath.Base(repo.Name),
		Language:   language,
		EntryPoint: "unknown",
		SourceFile: repo.Name,
		SourceLine: 0,
	})
}
