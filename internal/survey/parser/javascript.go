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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/garrettyarmo/forge/internal/logger"
)

// JavaScriptParser handles JavaScript and TypeScript sources. It detects
// ES6 imports and CommonJS requires, AWS SDK handles, DynamoDB method
// calls, and HTTP client usage (axios, fetch), and infers service metadata
// from package.json.
type JavaScriptParser struct {
	log logger.Logger
}

// NewJavaScriptParser creates the shared JS/TS parser instance.
func NewJavaScriptParser(log logger.Logger) *JavaScriptParser {
	return &JavaScriptParser{log: log.WithComponent("javascript-parser")}
}

func (p *JavaScriptParser) SupportedExtensions() []string {
	return []string{"js", "jsx", "ts", "tsx", "mjs", "cjs"}
}

func (p *JavaScriptParser) ParseRepo(repoPath string) ([]Discovery, error) {
	return walkAndParse(p, repoPath, p.log)
}

// ParseFile parses one JS/TS file. A fresh tree-sitter handle is created
// per call; the grammar is picked by extension so TypeScript annotations
// parse cleanly.
func (p *JavaScriptParser) ParseFile(path string, content []byte) ([]Discovery, error) {
	tsParser := sitter.NewParser()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "ts" || ext == "tsx" {
		tsParser.SetLanguage(tsx.GetLanguage())
	} else {
		tsParser.SetLanguage(javascript.GetLanguage())
	}

	tree, err := tsParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	var discoveries []Discovery
	discoveries = append(discoveries, p.detectImports(root, content, path)...)
	discoveries = append(discoveries, p.detectAWSSDK(root, content, path)...)
	discoveries = append(discoveries, p.detectDynamoDBOperations(root, content, path)...)
	discoveries = append(discoveries, p.detectHTTPCalls(root, content, path)...)
	return discoveries, nil
}

// detectImports finds ES6 import statements and CommonJS requires.
func (p *JavaScriptParser) detectImports(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			source := n.ChildByFieldName("source")
			if source == nil {
				return
			}
			module := trimQuotes(source.Content(content))
			if module == "" {
				return
			}
			discoveries = append(discoveries, ImportDiscovery{
				Module:        module,
				IsRelative:    strings.HasPrefix(module, "."),
				ImportedItems: p.importSpecifiers(n, content),
				SourceFile:    path,
				SourceLine:    int(source.StartPoint().Row) + 1,
			})
		case "call_expression":
			if module, line, ok := requireModule(n, content); ok && module != "" {
				discoveries = append(discoveries, ImportDiscovery{
					Module:     module,
					IsRelative: strings.HasPrefix(module, "."),
					SourceFile: path,
					SourceLine: line,
				})
			}
		}
	})

	return discoveries
}

// requireModule extracts the module from a require("...") call.
func requireModule(call *sitter.Node, content []byte) (string, int, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || fn.Content(content) != "require" {
		return "", 0, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", 0, false
	}
	first := args.NamedChild(0)
	if first == nil || (first.Type() != "string" && first.Type() != "template_string") {
		return "", 0, false
	}
	return trimQuotes(first.Content(content)), int(first.StartPoint().Row) + 1, true
}

// importSpecifiers collects named and default specifiers from an import
// statement's clause.
func (p *JavaScriptParser) importSpecifiers(importStmt *sitter.Node, content []byte) []string {
	var items []string
	for i := 0; i < int(importStmt.NamedChildCount()); i++ {
		child := importStmt.NamedChild(i)
		if child.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			clause := child.NamedChild(j)
			switch clause.Type() {
			case "named_imports":
				for k := 0; k < int(clause.NamedChildCount()); k++ {
					spec := clause.NamedChild(k)
					if spec.Type() == "import_specifier" {
						if name := spec.NamedChild(0); name != nil {
							items = append(items, name.Content(content))
						}
					}
				}
			case "identifier":
				items = append(items, clause.Content(content))
			}
		}
	}
	return items
}

// detectAWSSDK materializes typed resource discoveries from AWS SDK
// imports. S3 and Lambda imports yield nameless cloud resources, and a
// DynamoDB import yields a nameless unknown-operation DatabaseAccess. SQS
// and SNS imports yield nothing: those resources are created only from
// calls that reveal a queue/topic name.
func (p *JavaScriptParser) detectAWSSDK(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				module := trimQuotes(source.Content(content))
				discoveries = append(discoveries,
					p.processAWSImport(module, int(source.StartPoint().Row)+1, path)...)
			}
		case "call_expression":
			if module, line, ok := requireModule(n, content); ok {
				discoveries = append(discoveries, p.processAWSImport(module, line, path)...)
			}
		}
	})

	return discoveries
}

func (p *JavaScriptParser) processAWSImport(module string, line int, path string) []Discovery {
	moduleLower := strings.ToLower(module)
	if !strings.Contains(moduleLower, "aws-sdk") && !strings.Contains(moduleLower, "@aws-sdk") {
		return nil
	}

	detectionMethod := "aws-sdk-v2"
	if strings.Contains(module, "@aws-sdk") {
		detectionMethod = "aws-sdk-v3"
	}

	switch {
	case strings.Contains(moduleLower, "dynamodb"):
		return []Discovery{DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			Operation:       OpUnknown,
			DetectionMethod: detectionMethod,
			SourceFile:      path,
			SourceLine:      line,
		}}
	case strings.Contains(moduleLower, "sqs"), strings.Contains(moduleLower, "sns"):
		// No discovery from the bare import: queue/topic nodes are only
		// created from calls where the name can be extracted, otherwise
		// they dedupe into meaningless "sqs-unknown" nodes.
		return nil
	case strings.Contains(moduleLower, "s3"):
		return []Discovery{CloudResourceDiscovery{
			ResourceType: "s3",
			SourceFile:   path,
			SourceLine:   line,
		}}
	case strings.Contains(moduleLower, "lambda"):
		return []Discovery{CloudResourceDiscovery{
			ResourceType: "lambda",
			SourceFile:   path,
			SourceLine:   line,
		}}
	}
	return nil
}

// dynamoMethods maps DynamoDB client methods to operations.
var dynamoMethods = map[string]DatabaseOperation{
	"get": OpRead, "getItem": OpRead, "query": OpRead, "scan": OpRead,
	"batchGet": OpRead, "batchGetItem": OpRead,
	"transactGet": OpRead, "transactGetItems": OpRead,
	"put": OpWrite, "putItem": OpWrite, "delete": OpWrite, "deleteItem": OpWrite,
	"batchWrite": OpWrite, "batchWriteItem": OpWrite,
	"transactWrite": OpWrite, "transactWriteItems": OpWrite,
	"update": OpReadWrite, "updateItem": OpReadWrite,
}

// dynamoObjectNames are substrings of identifiers that look like DynamoDB
// clients; the check keeps axios.get() from registering as a table read.
var dynamoObjectNames = []string{
	"dynamodb", "ddb", "dynamo", "docclient", "doc_client",
	"documentclient", "document_client", "dynamodbclient", "dynamodb_client",
	"table",
}

func (p *JavaScriptParser) detectDynamoDBOperations(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "member_expression" {
			return
		}
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		if prop == nil || obj == nil {
			return
		}
		operation, known := dynamoMethods[prop.Content(content)]
		if !known || !isDynamoLikeObject(obj, content) {
			return
		}

		discoveries = append(discoveries, DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			TableName:       extractTableNameFromCall(n, content),
			Operation:       operation,
			DetectionMethod: "method-call",
			SourceFile:      path,
			SourceLine:      int(n.StartPoint().Row) + 1,
		})
	})

	return discoveries
}

func isDynamoLikeObject(obj *sitter.Node, content []byte) bool {
	text := strings.ToLower(obj.Content(content))
	for _, name := range dynamoObjectNames {
		if strings.Contains(text, name) {
			return true
		}
	}
	if obj.Type() == "new_expression" &&
		(strings.Contains(text, "dynamodb") || strings.Contains(text, "documentclient")) {
		return true
	}
	return false
}

// extractTableNameFromCall searches an object-literal first argument for a
// TableName key with a string value. Non-literal TableName expressions
// yield no name, which dedupes under "dynamodb-unknown" downstream.
func extractTableNameFromCall(call *sitter.Node, content []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "object" {
			continue
		}
		for j := 0; j < int(arg.NamedChildCount()); j++ {
			pair := arg.NamedChild(j)
			if pair.Type() != "pair" {
				continue
			}
			key := pair.ChildByFieldName("key")
			value := pair.ChildByFieldName("value")
			if key == nil || value == nil || key.Content(content) != "TableName" {
				continue
			}
			if value.Type() != "string" {
				return ""
			}
			return trimQuotes(value.Content(content))
		}
		return ""
	}
	return ""
}

// axiosVerbs maps axios member methods to HTTP verbs. "request" is a valid
// call with no fixed verb.
var axiosVerbs = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT", "delete": "DELETE",
	"patch": "PATCH", "head": "HEAD", "options": "OPTIONS", "request": "",
}

func (p *JavaScriptParser) detectHTTPCalls(root *sitter.Node, content []byte, path string) []Discovery {
	var discoveries []Discovery

	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return
		}

		isCall, method, detection := classifyHTTPCall(fn, content)
		if !isCall {
			return
		}

		target := extractURLFromCall(n, content)
		if target == "" {
			target = "unknown"
		}
		discoveries = append(discoveries, APICallDiscovery{
			Target:          target,
			Method:          method,
			DetectionMethod: detection,
			SourceFile:      path,
			SourceLine:      int(n.StartPoint().Row) + 1,
		})
	})

	return discoveries
}

func classifyHTTPCall(fn *sitter.Node, content []byte) (bool, string, string) {
	if fn.Type() == "identifier" {
		switch fn.Content(content) {
		case "fetch":
			return true, "", "fetch"
		case "axios":
			return true, "", "axios"
		}
		return false, "", ""
	}

	if fn.Type() == "member_expression" {
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj != nil && prop != nil && obj.Content(content) == "axios" {
			verb, ok := axiosVerbs[prop.Content(content)]
			if !ok {
				return false, "", ""
			}
			return true, verb, "axios"
		}
	}
	return false, "", ""
}

func extractURLFromCall(call *sitter.Node, content []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	first := args.NamedChild(0)
	if first == nil {
		return ""
	}
	switch first.Type() {
	case "string":
		return trimQuotes(first.Content(content))
	case "template_string":
		// Template literals are kept as-is, ${} expressions included.
		return strings.Trim(first.Content(content), "`")
	}
	return ""
}

// packageJSON is the subset of package.json the service inference reads.
type packageJSON struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// jsFrameworks is the framework detection priority order.
var jsFrameworks = []struct {
	dep  string
	name string
}{
	{"@nestjs/core", "nestjs"},
	{"next", "next.js"},
	{"nuxt", "nuxt"},
	{"express", "express"},
	{"fastify", "fastify"},
	{"koa", "koa"},
	{"@hapi/hapi", "hapi"},
}

// ParsePackageJSON infers service metadata from a repo's package.json:
// name, entry point, framework (by dependency priority), and language
// (typescript when the typescript devDependency or a tsconfig.json is
// present).
func (p *JavaScriptParser) ParsePackageJSON(repoPath string) (*ServiceDiscovery, bool) {
	pkgPath := filepath.Join(repoPath, "package.json")
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return nil, false
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		p.log.Debug("failed to parse package.json", logger.String("file", pkgPath), logger.Error(err))
		return nil, false
	}
	if pkg.Name == "" {
		return nil, false
	}

	framework := ""
	for _, fw := range jsFrameworks {
		if _, ok := pkg.Dependencies[fw.dep]; ok {
			framework = fw.name
			break
		}
		if fw.dep == "@hapi/hapi" {
			if _, ok := pkg.Dependencies["hapi"]; ok {
				framework = fw.name
				break
			}
		}
	}

	entryPoint := pkg.Main
	if entryPoint == "" {
		entryPoint = "index.js"
	}

	language := "javascript"
	if _, ok := pkg.DevDependencies["typescript"]; ok {
		language = "typescript"
	} else if _, err := os.Stat(filepath.Join(repoPath, "tsconfig.json")); err == nil {
		language = "typescript"
	}

	return &ServiceDiscovery{
		Name:       pkg.Name,
		Language:   language,
		Framework:  framework,
		EntryPoint: entryPoint,
		SourceFile: pkgPath,
		SourceLine: 1,
	}, true
}

// walk applies fn to node and every named descendant in source order.
func walk(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), fn)
	}
}
