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

// TraversalDirection selects which edges to follow from a node.
type TraversalDirection int

const (
	DirectionOut TraversalDirection = iota
	DirectionIn
	DirectionBoth
)

// TraverseEdges returns the neighbors of a node reachable over edges of
// the given kinds in the given direction. A nil kinds slice matches every
// edge kind. Neighbors are returned in edge insertion order and may repeat
// when connected by multiple edges.
func (g *Graph) TraverseEdges(id NodeID, kinds []EdgeKind, direction TraversalDirection) []*Node {
	kindSet := make(map[EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	match := func(k EdgeKind) bool {
		return len(kindSet) == 0 || kindSet[k]
	}

	var neighbors []*Node
	if direction == DirectionOut || direction == DirectionBoth {
		for _, e := range g.EdgesFrom(id) {
			if match(e.Kind) {
				if n, ok := g.GetNode(e.Target); ok {
					neighbors = append(neighbors, n)
				}
			}
		}
	}
	if direction == DirectionIn || direction == DirectionBoth {
		for _, e := range g.EdgesTo(id) {
			if match(e.Kind) {
				if n, ok := g.GetNode(e.Source); ok {
					neighbors = append(neighbors, n)
				}
			}
		}
	}
	return neighbors
}

// FindPath returns the shortest node path from one node to another under
// uniform edge weight, following outgoing edges, or nil if unreachable.
func (g *Graph) FindPath(from, to NodeID) []*Node {
	fromIdx, ok := g.nodeIndex[from.String()]
	if !ok {
		return nil
	}
	toIdx, ok := g.nodeIndex[to.String()]
	if !ok {
		return nil
	}

	if fromIdx == toIdx {
		return []*Node{g.nodes[fromIdx]}
	}

	// BFS with parent tracking.
	parent := make(map[int]int)
	visited := map[int]bool{fromIdx: true}
	queue := []int{fromIdx}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, ei := range g.outAdj[cur] {
			next := g.nodeIndex[g.edges[ei].Target.String()]
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = cur
			if next == toIdx {
				return g.reconstructPath(parent, fromIdx, toIdx)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *Graph) reconstructPath(parent map[int]int, from, to int) []*Node {
	var reversed []int
	for cur := to; ; cur = parent[cur] {
		reversed = append(reversed, cur)
		if cur == from {
			break
		}
	}
	path := make([]*Node, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, g.nodes[reversed[i]])
	}
	return path
}

// Distance returns the number of hops on the shortest path between two
// nodes, or -1 if no path exists.
func (g *Graph) Distance(from, to NodeID) int {
	path := g.FindPath(from, to)
	if path == nil {
		return -1
	}
	return len(path) - 1
}

// Neighbors returns all nodes adjacent to id over any edge kind in either
// direction.
func (g *Graph) Neighbors(id NodeID) []*Node {
	return g.TraverseEdges(id, nil, DirectionBoth)
}

// Dependencies returns what a service depends on: targets of its outgoing
// calls, reads, writes, publishes and uses edges.
func (g *Graph) Dependencies(serviceID NodeID) []*Node {
	return g.TraverseEdges(serviceID,
		[]EdgeKind{EdgeCalls, EdgeReads, EdgeWrites, EdgePublishes, EdgeUses},
		DirectionOut)
}

// Dependents returns the services that call the given service.
func (g *Graph) Dependents(serviceID NodeID) []*Node {
	return g.TraverseEdges(serviceID, []EdgeKind{EdgeCalls}, DirectionIn)
}

// ServicesAccessingResource returns every service with an access edge into
// the given resource.
func (g *Graph) ServicesAccessingResource(resourceID NodeID) []*Node {
	return g.TraverseEdges(resourceID,
		[]EdgeKind{EdgeReads, EdgeWrites, EdgeReadsShared, EdgeWritesShared,
			EdgePublishes, EdgeSubscribes, EdgeUses},
		DirectionIn)
}

// ImplicitCouplings returns every implicitly_coupled pair with its edge.
func (g *Graph) ImplicitCouplings() [][2]*Node {
	var pairs [][2]*Node
	for _, e := range g.EdgesByKind(EdgeImplicitlyCoupled) {
		a, aok := g.GetNode(e.Source)
		b, bok := g.GetNode(e.Target)
		if aok && bok {
			pairs = append(pairs, [2]*Node{a, b})
		}
	}
	return pairs
}

// NodesWithinDistance returns every node reachable from start within
// maxDistance hops over outgoing edges, including start itself.
func (g *Graph) NodesWithinDistance(start NodeID, maxDistance int) []*Node {
	startIdx, ok := g.nodeIndex[start.String()]
	if !ok {
		return nil
	}

	type item struct {
		idx  int
		dist int
	}
	visited := map[int]bool{startIdx: true}
	queue := []item{{startIdx, 0}}
	var result []*Node

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, g.nodes[cur.idx])

		if cur.dist == maxDistance {
			continue
		}
		for _, ei := range g.outAdj[cur.idx] {
			next := g.nodeIndex[g.edges[ei].Target.String()]
			if !visited[next] {
				visited[next] = true
				queue = append(queue, item{next, cur.dist + 1})
			}
		}
	}
	return result
}
