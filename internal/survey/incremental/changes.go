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

package incremental

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangeResult describes what changed in a repository since the previous
// survey. Paths are filtered to parseable source files.
type ChangeResult struct {
	CurrentSHA      string
	PreviousSHA     string // empty on first survey
	Added           []string
	Modified        []string
	Deleted         []string
	NeedsFullSurvey bool
	Reason          string
}

// HasChanges reports whether any files changed.
func (c *ChangeResult) HasChanges() bool {
	return len(c.Added)+len(c.Modified)+len(c.Deleted) > 0
}

// ChangeCount returns the total number of changed files.
func (c *ChangeResult) ChangeCount() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// FilesToParse returns the added and modified files, the set a scoped
// re-parse must visit.
func (c *ChangeResult) FilesToParse() []string {
	files := make([]string, 0, len(c.Added)+len(c.Modified))
	files = append(files, c.Added...)
	files = append(files, c.Modified...)
	return files
}

// ChangeDetector compares a repository's working tree against the
// persisted survey state.
type ChangeDetector struct {
	state *SurveyState
}

// NewChangeDetector wraps a survey state.
func NewChangeDetector(state *SurveyState) *ChangeDetector {
	return &ChangeDetector{state: state}
}

// State returns the wrapped survey state.
func (d *ChangeDetector) State() *SurveyState { return d.state }

// DetectChanges determines what changed in a repo since its last survey.
// Git-diff failures (force push, shallow clone) never surface as errors:
// they downgrade to a full survey with the stderr preserved as the reason.
func (d *ChangeDetector) DetectChanges(repoName, repoPath string) (*ChangeResult, error) {
	currentSHA, err := CurrentCommit(repoPath)
	if err != nil {
		return nil, err
	}

	previous, ok := d.state.GetRepo(repoName)
	if !ok {
		return &ChangeResult{
			CurrentSHA:      currentSHA,
			NeedsFullSurvey: true,
			Reason:          "first survey",
		}, nil
	}

	if previous.CommitSHA == currentSHA {
		return &ChangeResult{
			CurrentSHA:  currentSHA,
			PreviousSHA: previous.CommitSHA,
		}, nil
	}

	diff := gitDiff(repoPath, previous.CommitSHA, currentSHA)
	diff.PreviousSHA = previous.CommitSHA
	return diff, nil
}

// CurrentCommit returns the HEAD commit SHA of the repository at path.
func CurrentCommit(path string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = path
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to get HEAD commit (is %s a git repository?): %s", path, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// gitDiff runs "git diff --name-status old new" and maps the status lines
// into the change result. A nonzero exit downgrades to a full survey.
func gitDiff(repoPath, fromSHA, toSHA string) *ChangeResult {
	result := &ChangeResult{CurrentSHA: toSHA}

	cmd := exec.Command("git", "diff", "--name-status", fromSHA, toSHA)
	cmd.Dir = repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		result.NeedsFullSurvey = true
		result.Reason = fmt.Sprintf("Git diff failed (possibly force push or shallow clone): %s",
			strings.TrimSpace(stderr.String()))
		return result
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[1]

		switch {
		case status == "A":
			appendParseable(&result.Added, path)
		case status == "M":
			appendParseable(&result.Modified, path)
		case status == "D":
			appendParseable(&result.Deleted, path)
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			// Rename: old path deleted, new path added.
			appendParseable(&result.Deleted, fields[1])
			appendParseable(&result.Added, fields[2])
		case strings.HasPrefix(status, "C") && len(fields) >= 3:
			// Copy: destination added.
			appendParseable(&result.Added, fields[2])
		}
	}

	return result
}

func appendParseable(list *[]string, path string) {
	if IsParseableFile(path) {
		*list = append(*list, path)
	}
}

// IsParseableFile reports whether a path has an extension one of the
// survey parsers handles, case-insensitively.
func IsParseableFile(path string) bool {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".") {
	case "js", "jsx", "ts", "tsx", "mjs", "cjs", "py", "tf":
		return true
	}
	return false
}
