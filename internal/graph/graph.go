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

// Package graph implements the typed, deduplicated knowledge graph Forge
// builds from survey discoveries: nodes with stable (kind, namespace, name)
// identity, edges with idempotent upsert, traversal and relevance-scored
// subgraph extraction, and the stable JSON envelope.
package graph

import (
	"fmt"
	"strings"
)

type edgeKey struct {
	source string
	target string
	kind   EdgeKind
}

// Graph is a directed multigraph with per-node and per-kind secondary
// indices. Nodes live in a flat arena keyed by index; the string-ID side
// table and the adjacency lists all refer into the arena, so cycles need
// no node-to-node pointers. Edges name their endpoints by ID, which the
// side table resolves to arena indices.
type Graph struct {
	nodes []*Node
	edges []*Edge

	nodeIndex map[string]int   // id string -> arena index
	byKind    map[NodeKind][]int
	outAdj    map[int][]int // node index -> edge indices
	inAdj     map[int][]int
	edgeIndex map[edgeKey]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodeIndex: make(map[string]int),
		byKind:    make(map[NodeKind][]int),
		outAdj:    make(map[int][]int),
		inAdj:     make(map[int][]int),
		edgeIndex: make(map[edgeKey]int),
	}
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge { return g.edges }

// GetNode looks up a node by ID.
func (g *Graph) GetNode(id NodeID) (*Node, bool) {
	idx, ok := g.nodeIndex[id.String()]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// NodesByKind returns all nodes of the given kind in insertion order.
func (g *Graph) NodesByKind(kind NodeKind) []*Node {
	indices := g.byKind[kind]
	nodes := make([]*Node, 0, len(indices))
	for _, idx := range indices {
		nodes = append(nodes, g.nodes[idx])
	}
	return nodes
}

// AddNode inserts a node, failing on a duplicate ID.
func (g *Graph) AddNode(node *Node) error {
	key := node.ID.String()
	if _, exists := g.nodeIndex[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, key)
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.nodeIndex[key] = idx
	g.byKind[node.ID.Kind] = append(g.byKind[node.ID.Kind], idx)
	return nil
}

// UpsertNode inserts a node or merges it into an existing node with the
// same ID. Attributes are merged with the new values winning per key, the
// latest metadata wins, and business context is preserved unless the
// incoming node explicitly carries one. A kind conflict is an integrity
// error.
func (g *Graph) UpsertNode(node *Node) error {
	key := node.ID.String()
	idx, exists := g.nodeIndex[key]
	if !exists {
		return g.AddNode(node)
	}

	existing := g.nodes[idx]
	if existing.ID.Kind != node.ID.Kind {
		return fmt.Errorf("%w: %s is %s, not %s", ErrKindConflict, key, existing.ID.Kind, node.ID.Kind)
	}

	if node.DisplayName != "" {
		existing.DisplayName = node.DisplayName
	}
	for k, v := range node.Attributes {
		existing.SetAttribute(k, v)
	}
	if node.BusinessContext != nil {
		existing.BusinessContext = node.BusinessContext
	}
	if node.LLMInstructions != nil {
		existing.LLMInstructions = node.LLMInstructions
	}
	if !node.Metadata.DiscoveredAt.IsZero() {
		existing.Metadata = node.Metadata
	}
	return nil
}

// AddEdge inserts an edge, requiring both endpoints to exist and the
// (source, target, kind) triple to be new.
func (g *Graph) AddEdge(edge *Edge) error {
	srcIdx, tgtIdx, err := g.endpointIndices(edge)
	if err != nil {
		return err
	}

	key := edgeKey{edge.Source.String(), edge.Target.String(), edge.Kind}
	if _, exists := g.edgeIndex[key]; exists {
		return fmt.Errorf("edge %s -%s-> %s already exists", edge.Source, edge.Kind, edge.Target)
	}

	if edge.Kind == EdgeOwns {
		if owner, ok := g.ownerOf(tgtIdx); ok && owner != srcIdx {
			return fmt.Errorf("%w: %s", ErrOwnershipConflict, edge.Target)
		}
	}

	idx := len(g.edges)
	g.edges = append(g.edges, edge)
	g.edgeIndex[key] = idx
	g.outAdj[srcIdx] = append(g.outAdj[srcIdx], idx)
	g.inAdj[tgtIdx] = append(g.inAdj[tgtIdx], idx)
	return nil
}

// UpsertEdge inserts an edge or merges it into an existing edge with the
// same (source, target, kind): evidence is unioned and confidence is
// monotonically non-decreasing.
func (g *Graph) UpsertEdge(edge *Edge) error {
	key := edgeKey{edge.Source.String(), edge.Target.String(), edge.Kind}
	idx, exists := g.edgeIndex[key]
	if !exists {
		return g.AddEdge(edge)
	}

	existing := g.edges[idx]

	// Union evidence, preserving first-seen order.
	seen := make(map[string]bool, len(existing.Metadata.Evidence))
	for _, ev := range existing.Metadata.Evidence {
		seen[ev] = true
	}
	for _, ev := range edge.Metadata.Evidence {
		if !seen[ev] {
			existing.Metadata.Evidence = append(existing.Metadata.Evidence, ev)
			seen[ev] = true
		}
	}

	if c := edge.Metadata.Confidence; c != nil {
		if existing.Metadata.Confidence == nil || *c > *existing.Metadata.Confidence {
			existing.SetConfidence(*c)
		}
	}
	if edge.Metadata.Reason != "" {
		existing.Metadata.Reason = edge.Metadata.Reason
	}
	if edge.Metadata.DiscoveredAt.After(existing.Metadata.DiscoveredAt) {
		existing.Metadata.DiscoveredAt = edge.Metadata.DiscoveredAt
	}
	return nil
}

// EdgesFrom returns all edges whose source is id.
func (g *Graph) EdgesFrom(id NodeID) []*Edge {
	idx, ok := g.nodeIndex[id.String()]
	if !ok {
		return nil
	}
	edges := make([]*Edge, 0, len(g.outAdj[idx]))
	for _, ei := range g.outAdj[idx] {
		edges = append(edges, g.edges[ei])
	}
	return edges
}

// EdgesTo returns all edges whose target is id.
func (g *Graph) EdgesTo(id NodeID) []*Edge {
	idx, ok := g.nodeIndex[id.String()]
	if !ok {
		return nil
	}
	edges := make([]*Edge, 0, len(g.inAdj[idx]))
	for _, ei := range g.inAdj[idx] {
		edges = append(edges, g.edges[ei])
	}
	return edges
}

// EdgesByKind returns all edges of the given kind in insertion order.
func (g *Graph) EdgesByKind(kind EdgeKind) []*Edge {
	var edges []*Edge
	for _, e := range g.edges {
		if e.Kind == kind {
			edges = append(edges, e)
		}
	}
	return edges
}

// Summary returns total counts and a per-kind node breakdown.
func (g *Graph) Summary() Summary {
	byType := make(map[string]int)
	for _, n := range g.nodes {
		byType[string(n.ID.Kind)]++
	}
	return Summary{
		TotalNodes: len(g.nodes),
		TotalEdges: len(g.edges),
		ByType:     byType,
	}
}

// Summary is the envelope summary block.
type Summary struct {
	TotalNodes int            `json:"total_nodes"`
	TotalEdges int            `json:"total_edges"`
	ByType     map[string]int `json:"by_type"`
}

// Validate checks the structural invariants: unique node IDs and edges
// whose endpoints exist. It is used by the round-trip tests and as a
// guard after loading a graph from disk.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		key := n.ID.String()
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, key)
		}
		seen[key] = true
	}
	for _, e := range g.edges {
		if _, ok := g.nodeIndex[e.Source.String()]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEndpoint, e.Source)
		}
		if _, ok := g.nodeIndex[e.Target.String()]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEndpoint, e.Target)
		}
	}
	return nil
}

func (g *Graph) endpointIndices(edge *Edge) (int, int, error) {
	srcIdx, ok := g.nodeIndex[edge.Source.String()]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownEndpoint, edge.Source)
	}
	tgtIdx, ok := g.nodeIndex[edge.Target.String()]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownEndpoint, edge.Target)
	}
	return srcIdx, tgtIdx, nil
}

// ownerOf returns the arena index of the service owning the node at
// tgtIdx, if an owns edge into it exists.
func (g *Graph) ownerOf(tgtIdx int) (int, bool) {
	for _, ei := range g.inAdj[tgtIdx] {
		e := g.edges[ei]
		if e.Kind == EdgeOwns {
			return g.nodeIndex[e.Source.String()], true
		}
	}
	return 0, false
}

// FindNodesByName returns nodes whose display name or ID name contains the
// query, case-insensitively, in insertion order.
func (g *Graph) FindNodesByName(query string) []*Node {
	q := strings.ToLower(query)
	var matches []*Node
	for _, n := range g.nodes {
		if strings.Contains(strings.ToLower(n.DisplayName), q) ||
			strings.Contains(strings.ToLower(n.ID.Name), q) {
			matches = append(matches, n)
		}
	}
	return matches
}

// FindNodesByAttribute returns nodes carrying an attribute equal to value.
func (g *Graph) FindNodesByAttribute(key string, value AttrValue) []*Node {
	var matches []*Node
	for _, n := range g.nodes {
		if v, ok := n.Attributes[key]; ok && v.Equal(value) {
			matches = append(matches, n)
		}
	}
	return matches
}
