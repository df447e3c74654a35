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
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garrettyarmo/forge/internal/logger"
)

// CloudFormationParser extracts AWS resource definitions and deployment
// metadata from CloudFormation and SAM templates. YAML and JSON are both
// decoded through yaml.v3 (JSON is a YAML subset), so intrinsic functions
// in either syntax land in the same shape.
type CloudFormationParser struct {
	log logger.Logger
}

// NewCloudFormationParser creates the CloudFormation/SAM parser instance.
func NewCloudFormationParser(log logger.Logger) *CloudFormationParser {
	return &CloudFormationParser{log: log.WithComponent("cloudformation-parser")}
}

func (p *CloudFormationParser) SupportedExtensions() []string {
	return []string{"yaml", "yml", "json"}
}

func (p *CloudFormationParser) ParseRepo(repoPath string) ([]Discovery, error) {
	return walkAndParse(p, repoPath, p.log)
}

func (p *CloudFormationParser) ParseFile(path string, content []byte) ([]Discovery, error) {
	var template map[string]interface{}
	if err := yaml.Unmarshal(content, &template); err != nil {
		return nil, fmt.Errorf("template parse error in %s: %w", path, err)
	}

	// Refuse anything that does not look like a CloudFormation/SAM
	// template unless the filename says it is one.
	if !isTemplate(template) && !isTemplateFilename(path) {
		return nil, nil
	}

	return p.extractResources(template, path), nil
}

// isTemplate checks the markers of a CloudFormation/SAM template.
func isTemplate(template map[string]interface{}) bool {
	if template == nil {
		return false
	}
	for _, key := range []string{"AWSTemplateFormatVersion", "Transform", "Resources"} {
		if _, ok := template[key]; ok {
			return true
		}
	}
	return false
}

// isTemplateFilename reports whether path is named like a SAM template.
func isTemplateFilename(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	switch name {
	case "template.yaml", "template.yml", "template.json",
		"samconfig.yaml", "samconfig.yml":
		return true
	}
	return false
}

// isSAMTemplate reports whether the Transform declares a SAM template.
func isSAMTemplate(template map[string]interface{}) bool {
	transform, ok := template["Transform"]
	if !ok {
		return false
	}
	switch t := transform.(type) {
	case string:
		return strings.Contains(t, "AWS::Serverless")
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.Contains(s, "AWS::Serverless") {
				return true
			}
		}
	}
	return false
}

func (p *CloudFormationParser) extractResources(template map[string]interface{}, path string) []Discovery {
	deploymentMethod := "cloudformation"
	if isSAMTemplate(template) {
		deploymentMethod = "sam"
	}

	environment := extractEnvironmentParameter(template)
	stackName := extractStackName(template, path)

	resources, ok := template["Resources"].(map[string]interface{})
	if !ok {
		return nil
	}

	// Map iteration is randomized; sort logical IDs for a stable
	// discovery order across runs.
	logicalIDs := make([]string, 0, len(resources))
	for id := range resources {
		logicalIDs = append(logicalIDs, id)
	}
	sort.Strings(logicalIDs)

	var discoveries []Discovery
	for _, logicalID := range logicalIDs {
		resource, ok := resources[logicalID].(map[string]interface{})
		if !ok {
			continue
		}
		if d := p.processResource(logicalID, resource, path, deploymentMethod, environment, stackName); d != nil {
			discoveries = append(discoveries, d)
		}
	}
	return discoveries
}

func (p *CloudFormationParser) processResource(
	logicalID string,
	resource map[string]interface{},
	path, deploymentMethod, environment, stackName string,
) Discovery {
	resourceType, _ := resource["Type"].(string)
	properties, _ := resource["Properties"].(map[string]interface{})

	deployment := &DeploymentMetadata{
		DeploymentMethod: deploymentMethod,
		Environment:      environment,
		StackName:        stackName,
		Tags:             map[string]string{},
	}

	// Property extraction falls back to the logical ID when the property
	// is missing or is an intrinsic that cannot be resolved.
	propName := func(key string) string {
		if properties != nil {
			if s := extractStringValue(properties[key]); s != "" {
				return s
			}
		}
		return logicalID
	}

	switch resourceType {
	case "AWS::Serverless::Function", "AWS::Lambda::Function":
		runtime := ""
		handler := "index.handler"
		if properties != nil {
			runtime = extractStringValue(properties["Runtime"])
			if h := extractStringValue(properties["Handler"]); h != "" {
				handler = h
			}
		}
		return ServiceDiscovery{
			Name:       propName("FunctionName"),
			Language:   languageFromRuntime(runtime),
			Framework:  "aws-lambda",
			EntryPoint: handler,
			SourceFile: path,
			SourceLine: 1,
			Deployment: deployment,
		}
	case "AWS::DynamoDB::Table":
		return DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			TableName:       propName("TableName"),
			Operation:       OpUnknown,
			DetectionMethod: deploymentMethod,
			SourceFile:      path,
			SourceLine:      1,
			Deployment:      deployment,
		}
	case "AWS::SQS::Queue":
		return QueueOperationDiscovery{
			QueueType:  "sqs",
			QueueName:  propName("QueueName"),
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: 1,
			Deployment: deployment,
		}
	case "AWS::SNS::Topic":
		return QueueOperationDiscovery{
			QueueType:  "sns",
			QueueName:  propName("TopicName"),
			Operation:  QueueOpUnknown,
			SourceFile: path,
			SourceLine: 1,
			Deployment: deployment,
		}
	case "AWS::S3::Bucket":
		return CloudResourceDiscovery{
			ResourceType: "s3",
			ResourceName: propName("BucketName"),
			SourceFile:   path,
			SourceLine:   1,
			Deployment:   deployment,
		}
	case "AWS::Serverless::Api":
		return CloudResourceDiscovery{
			ResourceType: "apigateway",
			ResourceName: propName("Name"),
			SourceFile:   path,
			SourceLine:   1,
			Deployment:   deployment,
		}
	}
	return nil
}

// extractStringValue resolves a template property to a best-effort string.
// Plain strings pass through; CFN intrinsics are flattened:
// Ref(X) -> "${Ref:X}", Fn::Sub(s) -> s, Fn::Sub([s, ...]) -> s,
// Fn::GetAtt([A,B]) -> "${GetAtt:A.B}".
func extractStringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if ref, ok := v["Ref"].(string); ok {
			return fmt.Sprintf("${Ref:%s}", ref)
		}
		if sub, ok := v["Fn::Sub"]; ok {
			switch s := sub.(type) {
			case string:
				return s
			case []interface{}:
				if len(s) > 0 {
					if first, ok := s[0].(string); ok {
						return first
					}
				}
			}
		}
		if getAtt, ok := v["Fn::GetAtt"].([]interface{}); ok {
			parts := make([]string, 0, len(getAtt))
			for _, part := range getAtt {
				if s, ok := part.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return fmt.Sprintf("${GetAtt:%s}", strings.Join(parts, "."))
			}
		}
	}
	return ""
}

// envParameterNames are matched case-insensitively against the template's
// Parameters section.
var envParameterNames = []string{"environment", "env", "stage"}

// extractEnvironmentParameter reads the Default of an Environment/Env/
// Stage parameter.
func extractEnvironmentParameter(template map[string]interface{}) string {
	parameters, ok := template["Parameters"].(map[string]interface{})
	if !ok {
		return ""
	}

	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, want := range envParameterNames {
		for _, name := range names {
			if strings.ToLower(name) != want {
				continue
			}
			if param, ok := parameters[name].(map[string]interface{}); ok {
				if def, ok := param["Default"].(string); ok {
					return def
				}
			}
		}
	}
	return ""
}

// extractStackName reads Metadata.StackName, falling back to the filename
// stem.
func extractStackName(template map[string]interface{}, path string) string {
	if metadata, ok := template["Metadata"].(map[string]interface{}); ok {
		if name, ok := metadata["StackName"].(string); ok {
			return name
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
