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
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/garrettyarmo/forge/internal/logger"
)

// TerraformParser extracts AWS resources and their deployment metadata
// from HCL configurations: DynamoDB tables, SQS queues, SNS topics, S3
// buckets and Lambda functions, with tags, environment and backend
// workspace folded into DeploymentMetadata.
type TerraformParser struct {
	log logger.Logger
}

// NewTerraformParser creates the Terraform parser instance.
func NewTerraformParser(log logger.Logger) *TerraformParser {
	return &TerraformParser{log: log.WithComponent("terraform-parser")}
}

func (p *TerraformParser) SupportedExtensions() []string {
	return []string{"tf"}
}

func (p *TerraformParser) ParseRepo(repoPath string) ([]Discovery, error) {
	return walkAndParse(p, repoPath, p.log)
}

// tfBodySchema lists the top-level blocks the parser inspects. Unknown
// blocks are ignored via PartialContent.
var tfBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "terraform"},
	},
}

func (p *TerraformParser) ParseFile(path string, content []byte) ([]Discovery, error) {
	hclParser := hclparse.NewParser()
	file, diags := hclParser.ParseHCL(content, path)
	if file == nil || file.Body == nil {
		return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
	}
	if diags.HasErrors() {
		p.log.Warn("HCL parsing errors", logger.String("file", path), logger.String("diagnostics", diags.Error()))
	}

	body, _, _ := file.Body.PartialContent(tfBodySchema)
	if body == nil {
		return nil, nil
	}

	// The backend workspace applies to every resource in the file, so the
	// terraform block is resolved before the resources are processed.
	workspace := ""
	for _, block := range body.Blocks {
		if block.Type == "terraform" {
			if ws := p.backendWorkspace(block); ws != "" {
				workspace = ws
			}
		}
	}

	var discoveries []Discovery
	for _, block := range body.Blocks {
		if block.Type != "resource" || len(block.Labels) < 2 {
			continue
		}
		if d := p.processResource(block, path, workspace); d != nil {
			discoveries = append(discoveries, d)
		}
	}
	return discoveries, nil
}

// processResource converts a single resource block into a discovery.
func (p *TerraformParser) processResource(block *hcl.Block, path, workspace string) Discovery {
	resourceType := block.Labels[0]
	logicalName := block.Labels[1]
	line := block.DefRange.Start.Line

	attrs := p.blockAttributes(block.Body)
	tags := p.stringMap(attrs["tags"])
	deployment := &DeploymentMetadata{
		DeploymentMethod:   "terraform",
		TerraformWorkspace: workspace,
		Environment:        tags["Environment"],
		Tags:               tags,
	}

	name := func(attr, fallback string) string {
		if v, ok := attrs[attr]; ok {
			if s := p.stringValue(v); s != "" {
				return s
			}
		}
		return fallback
	}

	switch resourceType {
	case "aws_dynamodb_table":
		return DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			TableName:       name("name", logicalName),
			Operation:       OpUnknown,
			DetectionMethod: "terraform",
			SourceFile:      path,
			SourceLine:      line,
			Deployment:      deployment,
		}
	case "aws_sqs_queue":
		return QueueOperationDiscovery{
			QueueType:  "sqs",
			QueueName:  name("name", logicalName),
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: line,
			Deployment: deployment,
		}
	case "aws_sns_topic":
		return QueueOperationDiscovery{
			QueueType:  "sns",
			QueueName:  name("name", logicalName),
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: line,
			Deployment: deployment,
		}
	case "aws_s3_bucket":
		return CloudResourceDiscovery{
			ResourceType: "s3",
			ResourceName: name("bucket", logicalName),
			SourceFile:   path,
			SourceLine:   line,
			Deployment:   deployment,
		}
	case "aws_lambda_function":
		runtime := ""
		if v, ok := attrs["runtime"]; ok {
			runtime = p.stringValue(v)
		}
		return ServiceDiscovery{
			Name:       name("function_name", logicalName),
			Language:   languageFromRuntime(runtime),
			Framework:  "aws-lambda",
			EntryPoint: name("handler", "index.handler"),
			SourceFile: path,
			SourceLine: line,
			Deployment: deployment,
		}
	}
	return nil
}

// backendWorkspace extracts the workspace from a `backend "s3"` block: the
// first path segment of its `key` attribute.
func (p *TerraformParser) backendWorkspace(terraformBlock *hcl.Block) string {
	content, _, _ := terraformBlock.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "backend", LabelNames: []string{"type"}},
		},
	})
	if content == nil {
		return ""
	}
	for _, block := range content.Blocks {
		if len(block.Labels) == 0 || block.Labels[0] != "s3" {
			continue
		}
		attrs := p.blockAttributes(block.Body)
		key := p.stringValue(attrs["key"])
		if key == "" {
			continue
		}
		if idx := strings.Index(key, "/"); idx > 0 {
			return key[:idx]
		}
		return key
	}
	return ""
}

// blockAttributes statically evaluates a block's attributes. Expressions
// that need variables or functions yield cty.NilVal and are skipped.
func (p *TerraformParser) blockAttributes(body hcl.Body) map[string]cty.Value {
	result := make(map[string]cty.Value)
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		// hclsyntax reports blocks inside the body as errors here; the
		// attributes that did parse are still usable.
		if attrs == nil {
			return result
		}
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{},
	}
	for name, attr := range attrs {
		value, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() || value.IsNull() || !value.IsKnown() {
			continue
		}
		result[name] = value
	}
	return result
}

// stringValue returns the string payload of a cty value, or "".
func (p *TerraformParser) stringValue(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// stringMap flattens a cty map/object of strings into a Go map.
func (p *TerraformParser) stringMap(v cty.Value) map[string]string {
	result := make(map[string]string)
	if v.IsNull() || !v.IsKnown() {
		return result
	}
	if !v.Type().IsMapType() && !v.Type().IsObjectType() {
		return result
	}
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		if k.Type() == cty.String && val.Type() == cty.String && !val.IsNull() {
			result[k.AsString()] = val.AsString()
		}
	}
	return result
}

// languageFromRuntime maps a Lambda runtime identifier to a language name.
func languageFromRuntime(runtime string) string {
	switch {
	case runtime == "":
		return "unknown"
	case strings.HasPrefix(runtime, "python"):
		return "python"
	case strings.HasPrefix(runtime, "nodejs"):
		return "javascript"
	case strings.HasPrefix(runtime, "java"):
		return "java"
	case strings.HasPrefix(runtime, "go"):
		return "go"
	case strings.HasPrefix(runtime, "ruby"):
		return "ruby"
	case strings.HasPrefix(runtime, "dotnet"):
		return "csharp"
	case strings.HasPrefix(runtime, "provided"):
		return "custom"
	default:
		return runtime
	}
}
