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
	"sort"
	"strings"

	"github.com/garrettyarmo/forge/internal/logger"
)

// Registry holds one shareable parser instance per language. JavaScript
// and TypeScript share a single instance; fetching both returns one
// parser. The registry is constructed per survey session; there is no
// global state.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry with all built-in parsers registered:
// javascript/typescript (shared), python, terraform, cloudformation.
func NewRegistry(log logger.Logger) *Registry {
	js := NewJavaScriptParser(log)
	return &Registry{
		parsers: map[string]Parser{
			"javascript":     js,
			"typescript":     js,
			"python":         NewPythonParser(log),
			"terraform":      NewTerraformParser(log),
			"cloudformation": NewCloudFormationParser(log),
		},
	}
}

// Get returns the parser for a language. Lookup is case-insensitive.
func (r *Registry) Get(language string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(language)]
	return p, ok
}

// GetFor returns a deduplicated sequence of parser instances for the
// detected languages minus the exclusion list. Exclusions are matched
// case-insensitively. Since JavaScript and TypeScript share one instance,
// detecting both yields a single parser.
func (r *Registry) GetFor(languages []string, exclude []string) []Parser {
	excluded := make(map[string]bool, len(exclude))
	for _, lang := range exclude {
		excluded[strings.ToLower(lang)] = true
	}

	var result []Parser
	seen := make(map[Parser]bool)
	for _, lang := range languages {
		lower := strings.ToLower(lang)
		if excluded[lower] {
			continue
		}
		p, ok := r.parsers[lower]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}

// AvailableLanguages lists every registered language name, sorted.
func (r *Registry) AvailableLanguages() []string {
	languages := make([]string, 0, len(r.parsers))
	for lang := range r.parsers {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}
