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
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SchemaURL identifies the graph file format.
const SchemaURL = "https://forge.dev/schemas/knowledge-graph/v1.json"

// SchemaVersion is bumped on breaking envelope changes.
const SchemaVersion = 1

// Envelope is the stable JSON form of a graph.
type Envelope struct {
	Schema      string         `json:"$schema"`
	Version     int            `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	Nodes       []nodeJSON     `json:"nodes"`
	Edges       []edgeJSON     `json:"edges"`
	Summary     Summary        `json:"summary"`
	Query       *SubgraphQuery `json:"query,omitempty"`
}

// SubgraphQuery describes how an extracted subgraph was produced.
type SubgraphQuery struct {
	Type     string   `json:"type"`
	Seeds    []string `json:"seeds"`
	MaxDepth int      `json:"max_depth"`
}

type nodeJSON struct {
	ID              string                 `json:"id"`
	Type            NodeKind               `json:"type"`
	Name            string                 `json:"name"`
	Attributes      map[string]AttrValue   `json:"attributes"`
	BusinessContext *BusinessContext       `json:"business_context,omitempty"`
	LLMInstructions map[string]interface{} `json:"llm_instructions,omitempty"`
	Metadata        NodeMetadata           `json:"metadata"`
	Relevance       *float64               `json:"relevance,omitempty"`
}

type edgeJSON struct {
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Type     EdgeKind     `json:"type"`
	Metadata EdgeMetadata `json:"metadata"`
}

// ToEnvelope converts the graph to its serializable form.
func (g *Graph) ToEnvelope() *Envelope {
	env := &Envelope{
		Schema:      SchemaURL,
		Version:     SchemaVersion,
		GeneratedAt: time.Now().UTC(),
		Nodes:       make([]nodeJSON, 0, len(g.nodes)),
		Edges:       make([]edgeJSON, 0, len(g.edges)),
		Summary:     g.Summary(),
	}
	for _, n := range g.nodes {
		env.Nodes = append(env.Nodes, nodeToJSON(n, nil))
	}
	for _, e := range g.edges {
		env.Edges = append(env.Edges, edgeToJSON(e))
	}
	return env
}

// SubgraphEnvelope converts an extracted subgraph to the envelope form,
// including the query addendum and per-node relevance scores.
func (s *ExtractedSubgraph) SubgraphEnvelope() *Envelope {
	seeds := make([]string, 0, len(s.Config.SeedNodes))
	for _, id := range s.Config.SeedNodes {
		seeds = append(seeds, id.String())
	}

	byType := make(map[string]int)
	env := &Envelope{
		Schema:      SchemaURL,
		Version:     SchemaVersion,
		GeneratedAt: time.Now().UTC(),
		Nodes:       make([]nodeJSON, 0, len(s.Nodes)),
		Edges:       make([]edgeJSON, 0, len(s.Edges)),
		Query: &SubgraphQuery{
			Type:     "service_filter",
			Seeds:    seeds,
			MaxDepth: s.Config.MaxDepth,
		},
	}
	for _, sn := range s.Nodes {
		score := sn.Score
		env.Nodes = append(env.Nodes, nodeToJSON(sn.Node, &score))
		byType[string(sn.Node.ID.Kind)]++
	}
	for _, e := range s.Edges {
		env.Edges = append(env.Edges, edgeToJSON(e))
	}
	env.Summary = Summary{
		TotalNodes: len(s.Nodes),
		TotalEdges: len(s.Edges),
		ByType:     byType,
	}
	return env
}

func nodeToJSON(n *Node, relevance *float64) nodeJSON {
	attrs := n.Attributes
	if attrs == nil {
		attrs = map[string]AttrValue{}
	}
	return nodeJSON{
		ID:              n.ID.String(),
		Type:            n.ID.Kind,
		Name:            n.DisplayName,
		Attributes:      attrs,
		BusinessContext: n.BusinessContext,
		LLMInstructions: n.LLMInstructions,
		Metadata:        n.Metadata,
		Relevance:       relevance,
	}
}

func edgeToJSON(e *Edge) edgeJSON {
	return edgeJSON{
		Source:   e.Source.String(),
		Target:   e.Target.String(),
		Type:     e.Kind,
		Metadata: e.Metadata,
	}
}

// Save writes the graph envelope to path as indented JSON.
func (g *Graph) Save(path string) error {
	data, err := json.MarshalIndent(g.ToEnvelope(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}

// Save writes an extracted subgraph envelope to path.
func (s *ExtractedSubgraph) Save(path string) error {
	data, err := json.MarshalIndent(s.SubgraphEnvelope(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal subgraph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write subgraph file: %w", err)
	}
	return nil
}

// Load reads a graph envelope from path and reconstructs the graph,
// validating structural invariants.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return FromJSON(data)
}

// FromJSON reconstructs a graph from envelope bytes.
func FromJSON(data []byte) (*Graph, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	g := New()
	for _, nj := range env.Nodes {
		id, err := ParseNodeID(nj.ID)
		if err != nil {
			return nil, err
		}
		node := &Node{
			ID:              id,
			DisplayName:     nj.Name,
			Attributes:      nj.Attributes,
			BusinessContext: nj.BusinessContext,
			LLMInstructions: nj.LLMInstructions,
			Metadata:        nj.Metadata,
		}
		if node.Attributes == nil {
			node.Attributes = map[string]AttrValue{}
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, ej := range env.Edges {
		source, err := ParseNodeID(ej.Source)
		if err != nil {
			return nil, err
		}
		target, err := ParseNodeID(ej.Target)
		if err != nil {
			return nil, err
		}
		edge := &Edge{
			Source:   source,
			Target:   target,
			Kind:     ej.Type,
			Metadata: ej.Metadata,
		}
		if edge.Metadata.Evidence == nil {
			edge.Metadata.Evidence = []string{}
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
