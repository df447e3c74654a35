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

package graph

import (
	"fmt"
	"time"
)

// DiscoverySource identifies which part of the pipeline produced a node.
type DiscoverySource string

const (
	SourceJavaScriptParser     DiscoverySource = "javascript_parser"
	SourcePythonParser         DiscoverySource = "python_parser"
	SourceTerraformParser      DiscoverySource = "terraform_parser"
	SourceCloudFormationParser DiscoverySource = "cloudformation_parser"
	SourceCouplingAnalyzer     DiscoverySource = "coupling_analyzer"
	SourceManual               DiscoverySource = "manual"
)

// NodeMetadata records where and when a node was discovered.
type NodeMetadata struct {
	SourceFile   string          `json:"source_file,omitempty"`
	SourceLine   int             `json:"source_line,omitempty"`
	CommitSHA    string          `json:"commit_sha,omitempty"`
	DiscoveredAt time.Time       `json:"discovered_at"`
	Source       DiscoverySource `json:"source"`
}

// IsStale reports whether the node was discovered more than d days ago.
func (m NodeMetadata) IsStale(days int) bool {
	if m.DiscoveredAt.IsZero() {
		return true
	}
	return time.Since(m.DiscoveredAt) > time.Duration(days)*24*time.Hour
}

// BusinessContext holds human-curated annotations written back onto nodes
// after the survey (e.g. by the LLM interview collaborator). Node identity
// is stable across such writes.
type BusinessContext struct {
	Purpose string            `json:"purpose,omitempty"`
	Owner   string            `json:"owner,omitempty"`
	History string            `json:"history,omitempty"`
	Gotchas []string          `json:"gotchas,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

// Node is a vertex of the knowledge graph: a service, data store, message
// channel, cloud resource, or API.
type Node struct {
	ID              NodeID
	DisplayName     string
	Attributes      map[string]AttrValue
	BusinessContext *BusinessContext
	// LLMInstructions is opaque to the core; it is preserved across
	// serialization round trips for the instruction-template collaborator.
	LLMInstructions map[string]interface{}
	Metadata        NodeMetadata
}

// NewNode creates a node with the given identity and human label.
// The display name must be non-empty.
func NewNode(id NodeID, displayName string) (*Node, error) {
	if !id.Kind.Valid() || id.Namespace == "" || id.Name == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedID, id.String())
	}
	if displayName == "" {
		return nil, fmt.Errorf("node %s: display name must be non-empty", id)
	}
	return &Node{
		ID:          id,
		DisplayName: displayName,
		Attributes:  make(map[string]AttrValue),
		Metadata: NodeMetadata{
			DiscoveredAt: time.Now().UTC(),
		},
	}, nil
}

// SetAttribute sets a single attribute, replacing any previous value.
func (n *Node) SetAttribute(key string, value AttrValue) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]AttrValue)
	}
	n.Attributes[key] = value
}

// Attribute returns the attribute for key, if present.
func (n *Node) Attribute(key string) (AttrValue, bool) {
	v, ok := n.Attributes[key]
	return v, ok
}
