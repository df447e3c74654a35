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

package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/logger"
	"github.com/garrettyarmo/forge/internal/survey/parser"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	log, err := logger.NewTestLogger()
	require.NoError(t, err)
	b := New(log)
	b.SetRepoContext("acme/user-service", "abc123")
	return b
}

func userService() parser.ServiceDiscovery {
	return parser.ServiceDiscovery{
		Name:       "user-service",
		Language:   "typescript",
		Framework:  "express",
		EntryPoint: "src/index.ts",
		SourceFile: "package.json",
		SourceLine: 1,
	}
}

func TestAddService(t *testing.T) {
	b := newTestBuilder(t)
	id := b.AddService(userService())

	require.False(t, id.IsZero())
	assert.Equal(t, 1, b.Graph().NodeCount())

	node, ok := b.Graph().GetNode(id)
	require.True(t, ok)
	assert.Equal(t, "user-service", node.DisplayName)
	assert.Equal(t, graph.KindService, node.ID.Kind)
	assert.Equal(t, "acme/user-service", node.ID.Namespace)
	assert.Equal(t, "typescript", node.Attributes["language"].AsString())
	assert.Equal(t, "express", node.Attributes["framework"].AsString())
	assert.Equal(t, "acme/user-service", node.Attributes["repo_url"].AsString())
	assert.Equal(t, "abc123", node.Metadata.CommitSHA)
}

func TestAddServiceDeduplicatesByName(t *testing.T) {
	b := newTestBuilder(t)
	id1 := b.AddService(userService())

	second := userService()
	second.Language = "javascript"
	id2 := b.AddService(second)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, b.Graph().NodeCount())
}

func TestDatabaseAccessCreatesNodeAndEdge(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())

	b.ProcessDiscoveries([]parser.Discovery{
		parser.DatabaseAccessDiscovery{
			DBType:          "dynamodb",
			TableName:       "users-table",
			Operation:       parser.OpRead,
			DetectionMethod: "method-call",
			SourceFile:      "src/db.ts",
			SourceLine:      42,
		},
	}, svc)

	g := b.Graph()
	assert.Equal(t, 2, g.NodeCount())
	edges := g.EdgesFrom(svc)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeReads, edges[0].Kind)
	assert.Equal(t, []string{"src/db.ts:42"}, edges[0].Metadata.Evidence)

	db, ok := g.GetNode(edges[0].Target)
	require.True(t, ok)
	assert.Equal(t, "users-table", db.DisplayName)
	assert.Equal(t, "dynamodb", db.Attributes["db_type"].AsString())
}

func TestReadWriteCreatesTwoEdges(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())

	b.ProcessDiscoveries([]parser.Discovery{
		parser.DatabaseAccessDiscovery{
			DBType:     "dynamodb",
			TableName:  "users-table",
			Operation:  parser.OpReadWrite,
			SourceFile: "src/db.ts",
			SourceLine: 10,
		},
	}, svc)

	g := b.Graph()
	assert.Equal(t, 2, g.EdgeCount())
	kinds := map[graph.EdgeKind]bool{}
	for _, e := range g.EdgesFrom(svc) {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[graph.EdgeReads])
	assert.True(t, kinds[graph.EdgeWrites])
}

func TestUnknownTableNameFallbackDeduplicates(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())

	b.ProcessDiscoveries([]parser.Discovery{
		parser.DatabaseAccessDiscovery{DBType: "dynamodb", Operation: parser.OpRead, SourceFile: "a.ts", SourceLine: 1},
		parser.DatabaseAccessDiscovery{DBType: "dynamodb", Operation: parser.OpWrite, SourceFile: "b.ts", SourceLine: 2},
	}, svc)

	g := b.Graph()
	// Both nameless accesses collapse into one "dynamodb-unknown" node.
	assert.Equal(t, 2, g.NodeCount())
	names := []string{}
	for _, n := range g.NodesByKind(graph.KindDatabase) {
		names = append(names, n.DisplayName)
	}
	assert.Equal(t, []string{"dynamodb-unknown"}, names)
}

func TestQueueOperationEdges(t *testing.T) {
	tests := []struct {
		name string
		op   parser.QueueOperationType
		kind graph.EdgeKind
	}{
		{"publish", parser.QueueOpPublish, graph.EdgePublishes},
		{"subscribe", parser.QueueOpSubscribe, graph.EdgeSubscribes},
		// Unknown defaults to publishes (producer bias).
		{"unknown", parser.QueueOpUnknown, graph.EdgePublishes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			svc := b.AddService(userService())
			b.ProcessDiscoveries([]parser.Discovery{
				parser.QueueOperationDiscovery{
					QueueType:  "sqs",
					QueueName:  "orders-queue",
					Operation:  tt.op,
					SourceFile: "src/queue.ts",
					SourceLine: 5,
				},
			}, svc)

			edges := b.Graph().EdgesFrom(svc)
			require.Len(t, edges, 1)
			assert.Equal(t, tt.kind, edges[0].Kind)
		})
	}
}

func TestCloudResourceUsesEdge(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())

	b.ProcessDiscoveries([]parser.Discovery{
		parser.CloudResourceDiscovery{
			ResourceType: "s3",
			ResourceName: "assets-bucket",
			SourceFile:   "src/s3.ts",
			SourceLine:   7,
		},
	}, svc)

	edges := b.Graph().EdgesFrom(svc)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeUses, edges[0].Kind)
}

func TestImportLiftsToCallsOnlyForKnownServices(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())
	b.AddService(parser.ServiceDiscovery{
		Name: "billing-service", Language: "javascript",
		EntryPoint: "index.js", SourceFile: "package.json", SourceLine: 1,
	})

	b.ProcessDiscoveries([]parser.Discovery{
		parser.ImportDiscovery{Module: "billing-service", SourceFile: "src/index.ts", SourceLine: 3},
		parser.ImportDiscovery{Module: "express", SourceFile: "src/index.ts", SourceLine: 1},
		parser.ImportDiscovery{Module: "./billing-service", IsRelative: true, SourceFile: "src/index.ts", SourceLine: 4},
	}, svc)

	edges := b.Graph().EdgesFrom(svc)
	require.Len(t, edges, 1, "only the known-service import becomes a calls edge")
	assert.Equal(t, graph.EdgeCalls, edges[0].Kind)
}

func TestAPICallsFoldIntoServiceAttribute(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())

	b.ProcessDiscoveries([]parser.Discovery{
		parser.APICallDiscovery{Target: "https://api.example.com/users", Method: "GET", DetectionMethod: "axios", SourceFile: "src/api.ts", SourceLine: 12},
		parser.APICallDiscovery{Target: "/internal/data", DetectionMethod: "fetch", SourceFile: "src/api.ts", SourceLine: 20},
	}, svc)

	node, ok := b.Graph().GetNode(svc)
	require.True(t, ok)
	calls, ok := node.Attribute("api_calls")
	require.True(t, ok)
	require.Len(t, calls.List, 2)

	first := calls.List[0].Map
	assert.Equal(t, "https://api.example.com/users", first["target"].AsString())
	assert.Equal(t, "GET", first["method"].AsString())
	assert.Equal(t, "src/api.ts:12", first["source"].AsString())

	second := calls.List[1].Map
	_, hasMethod := second["method"]
	assert.False(t, hasMethod, "verbless calls carry no method")
}

func TestDeploymentMetadataPromotedToAttributes(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(parser.ServiceDiscovery{
		Name: "order-processor", Language: "python", Framework: "aws-lambda",
		EntryPoint: "app.handler", SourceFile: "infra/main.tf", SourceLine: 3,
		Deployment: &parser.DeploymentMetadata{
			DeploymentMethod:   "terraform",
			TerraformWorkspace: "payments",
			Environment:        "production",
			Tags:               map[string]string{"Team": "payments"},
		},
	})

	node, ok := b.Graph().GetNode(svc)
	require.True(t, ok)
	assert.Equal(t, "terraform", node.Attributes["deployment_method"].AsString())
	assert.Equal(t, "payments", node.Attributes["terraform_workspace"].AsString())
	assert.Equal(t, "production", node.Attributes["environment"].AsString())
	assert.Equal(t, "payments", node.Attributes["tags"].Map["Team"].AsString())
	assert.Equal(t, graph.SourceTerraformParser, node.Metadata.Source)
}

func TestFromGraphRebuildsIndexes(t *testing.T) {
	b := newTestBuilder(t)
	svc := b.AddService(userService())
	b.ProcessDiscoveries([]parser.Discovery{
		parser.DatabaseAccessDiscovery{DBType: "dynamodb", TableName: "users-table", Operation: parser.OpRead, SourceFile: "a.ts", SourceLine: 1},
	}, svc)
	g := b.Build()

	log, err := logger.NewTestLogger()
	require.NoError(t, err)
	rebuilt := FromGraph(g, log)
	rebuilt.SetRepoContext("acme/user-service", "def456")

	// The same service name resolves to the existing node.
	id := rebuilt.AddService(userService())
	assert.Equal(t, svc, id)
	assert.Equal(t, 2, rebuilt.Graph().NodeCount())

	// The same table name resolves to the existing resource node.
	rebuilt.ProcessDiscoveries([]parser.Discovery{
		parser.DatabaseAccessDiscovery{DBType: "dynamodb", TableName: "users-table", Operation: parser.OpWrite, SourceFile: "b.ts", SourceLine: 2},
	}, id)
	assert.Equal(t, 2, rebuilt.Graph().NodeCount())
}

func TestBuildPublishesAndResets(t *testing.T) {
	b := newTestBuilder(t)
	b.AddService(userService())

	g := b.Build()
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, b.Graph().NodeCount())
}
