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
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitRepo initializes a git repository with one committed file and
// returns its path.
func gitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	writeAndCommit(t, dir, "index.js", "console.log('hi');\n", "initial")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func writeAndCommit(t *testing.T, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", message)
}

func TestCurrentCommit(t *testing.T) {
	dir := gitRepo(t)
	sha, err := CurrentCommit(dir)
	require.NoError(t, err)
	assert.Len(t, sha, 40)
}

func TestCurrentCommitNotARepo(t *testing.T) {
	_, err := CurrentCommit(t.TempDir())
	assert.Error(t, err)
}

func TestDetectChangesFirstSurvey(t *testing.T) {
	dir := gitRepo(t)
	detector := NewChangeDetector(NewState())

	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err)

	assert.True(t, result.NeedsFullSurvey)
	assert.Equal(t, "first survey", result.Reason)
	assert.Empty(t, result.PreviousSHA)
	assert.NotEmpty(t, result.CurrentSHA)
}

func TestDetectChangesUnchanged(t *testing.T) {
	dir := gitRepo(t)
	sha, err := CurrentCommit(dir)
	require.NoError(t, err)

	state := NewState()
	state.MarkSurveyed("owner/repo", sha, 1, nil, true)
	detector := NewChangeDetector(state)

	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err)

	assert.False(t, result.NeedsFullSurvey)
	assert.False(t, result.HasChanges())
	assert.Equal(t, sha, result.CurrentSHA)
	assert.Equal(t, sha, result.PreviousSHA)
}

func TestDetectChangesAddedModifiedDeleted(t *testing.T) {
	dir := gitRepo(t)
	firstSHA, err := CurrentCommit(dir)
	require.NoError(t, err)

	state := NewState()
	state.MarkSurveyed("owner/repo", firstSHA, 1, nil, true)

	// Modify the tracked file, add a parseable and a non-parseable file,
	// then commit.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.js"), []byte("changed\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("docs\n"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "changes")

	detector := NewChangeDetector(state)
	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err)

	assert.False(t, result.NeedsFullSurvey)
	assert.Equal(t, []string{"new.py"}, result.Added, "non-parseable files are filtered")
	assert.Equal(t, []string{"index.js"}, result.Modified)
	assert.Empty(t, result.Deleted)
	assert.Equal(t, 2, result.ChangeCount())
	assert.ElementsMatch(t, []string{"new.py", "index.js"}, result.FilesToParse())
}

func TestDetectChangesDeletion(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "old.py", "x = 1\n", "add old")
	sha, err := CurrentCommit(dir)
	require.NoError(t, err)

	state := NewState()
	state.MarkSurveyed("owner/repo", sha, 1, nil, true)

	runGit(t, dir, "rm", "old.py")
	runGit(t, dir, "commit", "-m", "remove old")

	detector := NewChangeDetector(state)
	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"old.py"}, result.Deleted)
}

func TestDetectChangesBadPreviousSHA(t *testing.T) {
	dir := gitRepo(t)

	state := NewState()
	// A SHA that does not exist in this repository (simulates force push
	// or shallow clone).
	state.MarkSurveyed("owner/repo", "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", 1, nil, true)

	detector := NewChangeDetector(state)
	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err, "git failures downgrade, they never propagate")

	assert.True(t, result.NeedsFullSurvey)
	assert.Contains(t, result.Reason, "Git diff failed")
}

func TestRenameMapsToDeleteAndAdd(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "before.py", "x = 1\ny = 2\nz = 3\n", "add before")
	sha, err := CurrentCommit(dir)
	require.NoError(t, err)

	state := NewState()
	state.MarkSurveyed("owner/repo", sha, 1, nil, true)

	runGit(t, dir, "mv", "before.py", "after.py")
	runGit(t, dir, "commit", "-m", "rename")

	detector := NewChangeDetector(state)
	result, err := detector.DetectChanges("owner/repo", dir)
	require.NoError(t, err)

	assert.Contains(t, result.Deleted, "before.py")
	assert.Contains(t, result.Added, "after.py")
}
