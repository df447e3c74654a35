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

import "sort"

// SubgraphConfig controls relevance-scored subgraph extraction.
type SubgraphConfig struct {
	// SeedNodes are the starting nodes, assigned relevance 1.0.
	SeedNodes []NodeID

	// MaxDepth bounds the BFS; depth 0 yields exactly the seeds.
	MaxDepth int

	// IncludeImplicitCouplings allows traversal over implicitly_coupled edges.
	IncludeImplicitCouplings bool

	// MinRelevance prunes expansion below this score (0.0 - 1.0).
	MinRelevance float64

	// EdgeKinds restricts traversal to the listed kinds; nil means all.
	EdgeKinds []EdgeKind
}

// DefaultSubgraphConfig returns the extraction defaults used by the views.
func DefaultSubgraphConfig() SubgraphConfig {
	return SubgraphConfig{
		MaxDepth:                 3,
		IncludeImplicitCouplings: true,
		MinRelevance:             0.1,
	}
}

// ScoredNode is a node with its relevance score and BFS depth.
type ScoredNode struct {
	Node  *Node
	Score float64
	Depth int
}

// ExtractedSubgraph is the result of a relevance-scored extraction: the
// scored nodes sorted by descending relevance (ties broken by BFS
// insertion order) plus every edge with both endpoints in the node set.
type ExtractedSubgraph struct {
	Nodes  []ScoredNode
	Edges  []*Edge
	Config SubgraphConfig
}

// NodeCount returns the number of nodes in the subgraph.
func (s *ExtractedSubgraph) NodeCount() int { return len(s.Nodes) }

// EdgeCount returns the number of edges in the subgraph.
func (s *ExtractedSubgraph) EdgeCount() int { return len(s.Edges) }

// edgeRelevanceDecay returns the per-hop score multiplier for an edge kind.
func edgeRelevanceDecay(kind EdgeKind) float64 {
	switch kind {
	case EdgeOwns:
		return 0.9
	case EdgeCalls:
		return 0.8
	case EdgeReads, EdgeWrites:
		return 0.75
	case EdgeReadsShared, EdgeWritesShared:
		return 0.7
	case EdgePublishes, EdgeSubscribes:
		return 0.65
	case EdgeUses:
		return 0.6
	case EdgeImplicitlyCoupled:
		return 0.5
	default:
		return 0.5
	}
}

// incomingDamping further reduces scores propagated against edge direction.
const incomingDamping = 0.7

// ExtractSubgraph runs an edge-weighted BFS from the configured seeds.
// Each node's score is the maximum product of decay factors along some
// path from a seed; incoming edges contribute at a 0.7 damping on top of
// the kind decay. Nodes below MinRelevance are neither expanded nor
// included in the result.
func (g *Graph) ExtractSubgraph(cfg SubgraphConfig) *ExtractedSubgraph {
	kindSet := make(map[EdgeKind]bool, len(cfg.EdgeKinds))
	for _, k := range cfg.EdgeKinds {
		kindSet[k] = true
	}
	allowed := func(kind EdgeKind) bool {
		if kind == EdgeImplicitlyCoupled && !cfg.IncludeImplicitCouplings {
			return false
		}
		return len(kindSet) == 0 || kindSet[kind]
	}

	type frontier struct {
		idx   int
		depth int
		score float64
	}

	type visit struct {
		score float64
		depth int
		order int
	}

	visited := make(map[int]visit)
	order := 0

	var queue []frontier
	for _, seed := range cfg.SeedNodes {
		if idx, ok := g.nodeIndex[seed.String()]; ok {
			queue = append(queue, frontier{idx, 0, 1.0})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		prev, seen := visited[cur.idx]
		if seen && prev.score >= cur.score {
			continue
		}
		if seen {
			// A re-visit with a better score keeps the original order.
			visited[cur.idx] = visit{cur.score, cur.depth, prev.order}
		} else {
			visited[cur.idx] = visit{cur.score, cur.depth, order}
			order++
		}

		if cur.score < cfg.MinRelevance {
			continue
		}
		if cur.depth >= cfg.MaxDepth {
			continue
		}

		for _, ei := range g.outAdj[cur.idx] {
			e := g.edges[ei]
			if !allowed(e.Kind) {
				continue
			}
			next := g.nodeIndex[e.Target.String()]
			queue = append(queue, frontier{next, cur.depth + 1, cur.score * edgeRelevanceDecay(e.Kind)})
		}
		for _, ei := range g.inAdj[cur.idx] {
			e := g.edges[ei]
			if !allowed(e.Kind) {
				continue
			}
			next := g.nodeIndex[e.Source.String()]
			queue = append(queue, frontier{next, cur.depth + 1, cur.score * edgeRelevanceDecay(e.Kind) * incomingDamping})
		}
	}

	// Collect nodes above the relevance threshold.
	type scoredIdx struct {
		idx int
		v   visit
	}
	var kept []scoredIdx
	for idx, v := range visited {
		if v.score >= cfg.MinRelevance {
			kept = append(kept, scoredIdx{idx, v})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].v.score != kept[j].v.score {
			return kept[i].v.score > kept[j].v.score
		}
		return kept[i].v.order < kept[j].v.order
	})

	result := &ExtractedSubgraph{Config: cfg}
	inSet := make(map[int]bool, len(kept))
	for _, s := range kept {
		inSet[s.idx] = true
		result.Nodes = append(result.Nodes, ScoredNode{
			Node:  g.nodes[s.idx],
			Score: s.v.score,
			Depth: s.v.depth,
		})
	}

	// Every edge whose endpoints are both in the result set.
	for _, e := range g.edges {
		srcIdx := g.nodeIndex[e.Source.String()]
		tgtIdx := g.nodeIndex[e.Target.String()]
		if inSet[srcIdx] && inSet[tgtIdx] {
			result.Edges = append(result.Edges, e)
		}
	}

	return result
}
