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

// Package parser provides the language-specific code parsers that extract
// typed discoveries from source trees. All parsers are deterministic AST
// analysis: the same input always produces the same discoveries, and false
// negatives are expected and tolerated.
package parser

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/garrettyarmo/forge/internal/logger"
)

// Parser extracts discoveries from source files of one language family.
// A registered parser instance is a cheap configuration holder; every
// ParseFile call constructs its own AST-parser handle, because tree-sitter
// parser handles are not safe to share concurrently.
type Parser interface {
	// SupportedExtensions lists the file extensions (without dot) this
	// parser handles.
	SupportedExtensions() []string

	// ParseFile parses one file's content and returns its discoveries in
	// a deterministic order; the source parsers group them by detection
	// pass, each pass in source order.
	ParseFile(path string, content []byte) ([]Discovery, error)

	// ParseRepo walks a repository tree and accumulates discoveries from
	// every file the parser supports. Per-file failures are logged and
	// swallowed so one bad file cannot abort a repo.
	ParseRepo(repoPath string) ([]Discovery, error)
}

// ignoredDirs are skipped during repository walks.
var ignoredDirs = map[string]bool{
	"node_modules": true, "dist": true, "build": true, ".next": true,
	".nuxt": true, "coverage": true, ".turbo": true, ".parcel-cache": true,
	"__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
	".ruff_cache": true, "venv": true, ".venv": true, "env": true,
	".tox": true, ".nox": true, "target": true, ".git": true, ".svn": true,
	".hg": true, "vendor": true, ".idea": true, ".vscode": true,
	".github": true, "out": true, "output": true, "bin": true, "obj": true,
	".terraform": true, ".aws-sam": true, ".serverless": true,
}

// walkAndParse implements the default ParseRepo: filter by extension and
// ignore list, read each file, parse, and accumulate. Read failures are
// logged at debug level and parse failures at warn level; both are
// skipped.
func walkAndParse(p Parser, repoPath string, log logger.Logger) ([]Discovery, error) {
	extensions := make(map[string]bool)
	for _, ext := range p.SupportedExtensions() {
		extensions[ext] = true
	}

	var discoveries []Discovery
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if !extensions[ext] {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Debug("failed to read file", logger.String("file", path), logger.Error(readErr))
			return nil
		}

		found, parseErr := p.ParseFile(path, content)
		if parseErr != nil {
			log.Warn("failed to parse file", logger.String("file", path), logger.Error(parseErr))
			return nil
		}
		discoveries = append(discoveries, found...)
		return nil
	})
	if err != nil {
		return discoveries, err
	}
	return discoveries, nil
}

// trimQuotes strips matching string delimiters from a source literal.
func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
