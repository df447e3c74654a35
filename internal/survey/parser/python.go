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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/garrettyarmo/forge/internal/logger"
)

// PythonParser detects imports, boto3 client handles, DynamoDB method
// calls, and HTTP client usage (requests, httpx) in Python sources, and
// infers service metadata from the project config files.
type PythonParser struct {
	log logger.Logger
}

// NewPythonParser creates the Python parser instance.
func NewPythonParser(log logger.Logger) *PythonParser {
	return &PythonParser{log: log.WithComponent("python-parser")}
}

func (p *PythonParser) SupportedExtensions() []string {
	return []string{"py"}
}

func (p *PythonParser) ParseRepo(repoPath string) ([]Discovery, error) {
	return walkAndParse(p, repoPath, p.log)
}

func (p *PythonParser) ParseFile(path string, content []byte) ([]Discovery, error) {
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(python.GetLanguage())

	tree, err := tsParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	var discoveries []Discovery
	discoveries = append(discoveries, p.detectImports(root, content, path)...)
	discoveries = append(discoveries, p.detectBoto3Clients(root, content, path)...)
	discoveries = append(discoveries, p.detectHTTPClients(root, content, path)...)
	discoveries = append(discoveries, p.detectDynamoDBMethods(root, content, path)...)
	return discoveries, nil
}

// detectImports finds "import X" and "from X import ..." statements. The
// module is the dotted path; relativity comes from a leading dot.
func (p *PythonParser) detectImports(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	emit := func(node *sitter.Node) {
		module := node.Content(content)
		if module == "" {
			return
		}
		discoveries = append(discoveries, ImportDiscovery{
			Module:     module,
			IsRelative: strings.HasPrefix(module, "."),
			SourceFile: path,
			SourceLine: int(node.StartPoint().Row) + 1,
		})
	}

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					emit(child)
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						emit(name)
					}
				}
			}
		case "import_from_statement":
			if module := n.ChildByFieldName("module_name"); module != nil {
				emit(module)
			}
		}
	})

	return discoveries
}

// detectBoto3Clients finds boto3.client('svc') and boto3.resource('svc')
// calls and materializes a named-by-service resource discovery.
func (p *PythonParser) detectBoto3Clients(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			return
		}
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return
		}
		if obj.Content(content) != "boto3" {
			return
		}
		method := attr.Content(content)
		if method != "client" && method != "resource" {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		service := firstStringArg(args, content)
		if service == "" {
			return
		}
		if d := boto3ServiceDiscovery(service, path, int(n.StartPoint().Row)+1); d != nil {
			discoveries = append(discoveries, d)
		}
	})

	return discoveries
}

// boto3ServiceDiscovery maps an AWS service name from a boto3 handle to the
// discovery variant that represents it.
func boto3ServiceDiscovery(service, path string, line int) Discovery {
	switch service {
	case "dynamodb":
		return DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			Operation:       OpUnknown,
			DetectionMethod: "boto3.client",
			SourceFile:      path,
			SourceLine:      line,
		}
	case "s3":
		return CloudResourceDiscovery{
			ResourceType: "s3",
			SourceFile:   path,
			SourceLine:   line,
		}
	case "sqs":
		return QueueOperationDiscovery{
			QueueType:  "sqs",
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: line,
		}
	case "sns":
		return QueueOperationDiscovery{
			QueueType:  "sns",
			Operation:  QueueOpPublish,
			SourceFile: path,
			SourceLine: line,
		}
	case "lambda":
		return CloudResourceDiscovery{
			ResourceType: "lambda",
			SourceFile:   path,
			SourceLine:   line,
		}
	case "events", "eventbridge":
		return QueueOperationDiscovery{
			QueueType:  "eventbridge",
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: line,
		}
	default:
		return CloudResourceDiscovery{
			ResourceType: service,
			SourceFile:   path,
			SourceLine:   line,
		}
	}
}

// pyHTTPVerbs are the client methods recognized on requests and httpx.
var pyHTTPVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "head": true, "options": true,
}

func (p *PythonParser) detectHTTPClients(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			return
		}
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return
		}
		client := obj.Content(content)
		method := attr.Content(content)
		if (client != "requests" && client != "httpx") || !pyHTTPVerbs[method] {
			return
		}

		target := "unknown"
		if args := n.ChildByFieldName("arguments"); args != nil {
			if url := firstStringArg(args, content); url != "" {
				target = url
			}
		}

		discoveries = append(discoveries, APICallDiscovery{
			Target:          target,
			Method:          strings.ToUpper(method),
			DetectionMethod: client,
			SourceFile:      path,
			SourceLine:      int(n.StartPoint().Row) + 1,
		})
	})

	return discoveries
}

// pyDynamoMethods maps boto3 DynamoDB methods to operations.
var pyDynamoMethods = map[string]DatabaseOperation{
	"get_item": OpRead, "query": OpRead, "scan": OpRead, "batch_get_item": OpRead,
	"put_item": OpWrite, "delete_item": OpWrite, "batch_write_item": OpWrite,
	"update_item": OpReadWrite,
}

func (p *PythonParser) detectDynamoDBMethods(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			return
		}
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return
		}
		method := attr.Content(content)
		operation, known := pyDynamoMethods[method]
		if !known {
			return
		}

		tableName := ""
		if args := n.ChildByFieldName("arguments"); args != nil {
			tableName = tableNameKeywordArg(args, content)
		}

		discoveries = append(discoveries, DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			TableName:       tableName,
			Operation:       operation,
			DetectionMethod: "boto3." + method,
			SourceFile:      path,
			SourceLine:      int(attr.StartPoint().Row) + 1,
		})
	})

	return discoveries
}

// firstStringArg returns the first string literal in an argument list.
func firstStringArg(args *sitter.Node, content []byte) string {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "string" {
			return trimQuotes(child.Content(content))
		}
	}
	return ""
}

// tableNameKeywordArg extracts TableName="..." from keyword arguments.
func tableNameKeywordArg(args *sitter.Node, content []byte) string {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() != "keyword_argument" {
			continue
		}
		name := child.ChildByFieldName("name")
		value := child.ChildByFieldName("value")
		if name == nil || value == nil || name.Content(content) != "TableName" {
			continue
		}
		if value.Type() == "string" {
			return trimQuotes(value.Content(content))
		}
	}
	return ""
}

// pyFrameworks is the framework detection priority order.
var pyFrameworks = []string{"fastapi", "flask", "django", "starlette", "chalice"}

// entryPointCandidates are probed at the repo root, then under src/.
var entryPointCandidates = []string{"main.py", "app.py", "run.py", "server.py", "__main__.py"}

// ParseProjectConfig infers Python service metadata from pyproject.toml,
// setup.py, or requirements.txt, in that order.
func (p *PythonParser) ParseProjectConfig(repoPath string) (*ServiceDiscovery, bool) {
	if svc, ok := p.parsePyprojectTOML(repoPath); ok {
		return svc, true
	}
	if svc, ok := p.parseSetupPy(repoPath); ok {
		return svc, true
	}

	reqPath := filepath.Join(repoPath, "requirements.txt")
	content, err := os.ReadFile(reqPath)
	if err != nil {
		return nil, false
	}
	return &ServiceDiscovery{
		Name:       filepath.Base(repoPath),
		Language:   "python",
		Framework:  detectPyFramework(string(content)),
		EntryPoint: p.findEntryPoint(repoPath),
		SourceFile: reqPath,
		SourceLine: 1,
	}, true
}

func (p *PythonParser) parsePyprojectTOML(repoPath string) (*ServiceDiscovery, bool) {
	path := filepath.Join(repoPath, "pyproject.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	content := string(data)

	name := ""
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "name") {
			parts := strings.SplitN(trimmed, "=", 2)
			if len(parts) == 2 {
				name = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
				break
			}
		}
	}
	if name == "" {
		return nil, false
	}

	return &ServiceDiscovery{
		Name:       name,
		Language:   "python",
		Framework:  detectPyFramework(content),
		EntryPoint: p.findEntryPoint(repoPath),
		SourceFile: path,
		SourceLine: 1,
	}, true
}

func (p *PythonParser) parseSetupPy(repoPath string) (*ServiceDiscovery, bool) {
	path := filepath.Join(repoPath, "setup.py")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	name := ""
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "name=") || strings.Contains(line, "name =") {
			if idx := strings.Index(line, "="); idx >= 0 {
				name = strings.Trim(strings.TrimSpace(line[idx+1:]), "\"',")
				break
			}
		}
	}
	if name == "" {
		return nil, false
	}

	return &ServiceDiscovery{
		Name:       name,
		Language:   "python",
		EntryPoint: p.findEntryPoint(repoPath),
		SourceFile: path,
		SourceLine: 1,
	}, true
}

// detectPyFramework scans dependency text for known frameworks in priority
// order.
func detectPyFramework(content string) string {
	lower := strings.ToLower(content)
	for _, fw := range pyFrameworks {
		if strings.Contains(lower, fw) {
			return fw
		}
	}
	return ""
}

// findEntryPoint probes the conventional entry-point filenames at the repo
// root, then under src/.
func (p *PythonParser) findEntryPoint(repoPath string) string {
	for _, candidate := range entryPointCandidates {
		if _, err := os.Stat(filepath.Join(repoPath, candidate)); err == nil {
			return candidate
		}
	}
	for _, candidate := range entryPointCandidates {
		if _, err := os.Stat(filepath.Join(repoPath, "src", candidate)); err == nil {
			return "src/" + candidate
		}
	}
	return "main.py"
}
