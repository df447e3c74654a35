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

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge/internal/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	log, err := logger.NewTestLogger()
	require.NoError(t, err)
	return NewRegistry(log)
}

func TestRegistryRegistersAllLanguages(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t,
		[]string{"cloudformation", "javascript", "python", "terraform", "typescript"},
		r.AvailableLanguages())
}

func TestRegistryGetCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"javascript", "JavaScript", "JAVASCRIPT", "jAvAsCrIpT"} {
		p, ok := r.Get(name)
		require.True(t, ok, "lookup %q", name)
		assert.NotNil(t, p)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t)
	_, ok := r.Get("cobol")
	assert.False(t, ok)
	_, ok = r.Get("")
	assert.False(t, ok)
}

func TestRegistryJavaScriptTypeScriptShareInstance(t *testing.T) {
	r := newTestRegistry(t)
	js, ok := r.Get("javascript")
	require.True(t, ok)
	ts, ok := r.Get("typescript")
	require.True(t, ok)
	assert.Same(t, js, ts)

	py, ok := r.Get("python")
	require.True(t, ok)
	assert.NotSame(t, js, py)
}

func TestGetForDeduplicatesSharedParser(t *testing.T) {
	r := newTestRegistry(t)
	parsers := r.GetFor([]string{"javascript", "typescript"}, nil)
	assert.Len(t, parsers, 1)
}

func TestGetForMultipleLanguages(t *testing.T) {
	r := newTestRegistry(t)
	parsers := r.GetFor([]string{"javascript", "typescript", "python", "terraform"}, nil)
	assert.Len(t, parsers, 3)
}

func TestGetForUnknownLanguageIgnored(t *testing.T) {
	r := newTestRegistry(t)
	parsers := r.GetFor([]string{"javascript", "cobol"}, nil)
	assert.Len(t, parsers, 1)
}

func TestGetForExclusions(t *testing.T) {
	r := newTestRegistry(t)

	parsers := r.GetFor([]string{"javascript", "python"}, []string{"python"})
	assert.Len(t, parsers, 1)

	// Exclusions are case-insensitive.
	parsers = r.GetFor([]string{"javascript", "python"}, []string{"PYTHON"})
	assert.Len(t, parsers, 1)

	parsers = r.GetFor([]string{"javascript", "python"}, []string{"javascript", "python"})
	assert.Empty(t, parsers)
}

func TestGetForExcludeJavascriptKeepsTypescript(t *testing.T) {
	r := newTestRegistry(t)
	parsers := r.GetFor([]string{"javascript", "typescript", "python"}, []string{"javascript"})
	// The shared JS/TS parser still arrives via typescript, plus python.
	assert.Len(t, parsers, 2)
}

func TestGetForEmptyDetected(t *testing.T) {
	r := newTestRegistry(t)
	assert.Empty(t, r.GetFor(nil, nil))
}
