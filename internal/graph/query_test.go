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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildQueryGraph wires svc-a -calls-> svc-b -calls-> svc-c and
// svc-a -reads-> users-db.
func buildQueryGraph(t *testing.T) (*Graph, NodeID, NodeID, NodeID, NodeID) {
	t.Helper()
	g := New()
	a := addServiceNode(t, g, "acme/repo", "svc-a")
	b := addServiceNode(t, g, "acme/repo", "svc-b")
	c := addServiceNode(t, g, "acme/repo", "svc-c")
	db := addDatabaseNode(t, g, "acme/repo", "users-db")

	for _, spec := range []struct {
		from, to NodeID
		kind     EdgeKind
	}{
		{a, b, EdgeCalls},
		{b, c, EdgeCalls},
		{a, db, EdgeReads},
	} {
		edge, err := NewEdge(spec.from, spec.to, spec.kind)
		require.NoError(t, err)
		require.NoError(t, g.AddEdge(edge))
	}
	return g, a, b, c, db
}

func TestTraverseEdgesOutgoing(t *testing.T) {
	g, a, _, _, _ := buildQueryGraph(t)
	neighbors := g.TraverseEdges(a, nil, DirectionOut)
	assert.Len(t, neighbors, 2) // svc-b and users-db
}

func TestTraverseEdgesIncoming(t *testing.T) {
	g, _, b, _, _ := buildQueryGraph(t)
	neighbors := g.TraverseEdges(b, nil, DirectionIn)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "svc-a", neighbors[0].DisplayName)
}

func TestTraverseEdgesKindFilter(t *testing.T) {
	g, a, _, _, _ := buildQueryGraph(t)
	neighbors := g.TraverseEdges(a, []EdgeKind{EdgeReads}, DirectionOut)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "users-db", neighbors[0].DisplayName)
}

func TestTraverseEdgesBoth(t *testing.T) {
	g, _, b, _, _ := buildQueryGraph(t)
	neighbors := g.TraverseEdges(b, nil, DirectionBoth)
	assert.Len(t, neighbors, 2) // out to svc-c, in from svc-a
}

func TestFindPath(t *testing.T) {
	g, a, _, c, _ := buildQueryGraph(t)
	path := g.FindPath(a, c)
	require.Len(t, path, 3)
	assert.Equal(t, "svc-a", path[0].DisplayName)
	assert.Equal(t, "svc-b", path[1].DisplayName)
	assert.Equal(t, "svc-c", path[2].DisplayName)
}

func TestFindPathNone(t *testing.T) {
	g, a, _, c, _ := buildQueryGraph(t)
	// Edges are directed: there is no path back from svc-c.
	assert.Nil(t, g.FindPath(c, a))
}

func TestFindPathSelf(t *testing.T) {
	g, a, _, _, _ := buildQueryGraph(t)
	path := g.FindPath(a, a)
	require.Len(t, path, 1)
}

func TestDistance(t *testing.T) {
	g, a, b, c, _ := buildQueryGraph(t)
	assert.Equal(t, 1, g.Distance(a, b))
	assert.Equal(t, 2, g.Distance(a, c))
	assert.Equal(t, -1, g.Distance(c, a))
	assert.Equal(t, 0, g.Distance(a, a))
}

func TestDependencies(t *testing.T) {
	g, a, _, _, _ := buildQueryGraph(t)
	deps := g.Dependencies(a)
	assert.Len(t, deps, 2)
}

func TestDependents(t *testing.T) {
	g, _, b, _, _ := buildQueryGraph(t)
	deps := g.Dependents(b)
	require.Len(t, deps, 1)
	assert.Equal(t, "svc-a", deps[0].DisplayName)
}

func TestServicesAccessingResource(t *testing.T) {
	g, _, _, _, db := buildQueryGraph(t)
	services := g.ServicesAccessingResource(db)
	require.Len(t, services, 1)
	assert.Equal(t, "svc-a", services[0].DisplayName)
}

func TestNodesWithinDistance(t *testing.T) {
	g, a, _, _, _ := buildQueryGraph(t)
	assert.Len(t, g.NodesWithinDistance(a, 0), 1)
	assert.Len(t, g.NodesWithinDistance(a, 1), 3)
	assert.Len(t, g.NodesWithinDistance(a, 2), 4)
}

func TestGraphWithCycle(t *testing.T) {
	g := New()
	a := addServiceNode(t, g, "acme/repo", "svc-a")
	b := addServiceNode(t, g, "acme/repo", "svc-b")

	ab, err := NewEdge(a, b, EdgeCalls)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(ab))
	ba, err := NewEdge(b, a, EdgeCalls)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(ba))

	// Traversal over the cycle terminates.
	path := g.FindPath(a, b)
	require.Len(t, path, 2)
	assert.Len(t, g.NodesWithinDistance(a, 10), 2)
}
