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

// Package builder folds parser discoveries into the knowledge graph,
// creating or merging nodes and edges under a per-repo namespace.
package builder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/logger"
	"github.com/garrettyarmo/forge/internal/survey/parser"
)

// Builder is stateful across a repo: it deduplicates services by name and
// resources by their human name, and stamps every node and edge with the
// current repo context. Node creation or edge creation failures are logged
// and skipped without aborting the caller.
type Builder struct {
	graph *graph.Graph

	// serviceMap deduplicates service nodes by discovered name.
	serviceMap map[string]graph.NodeID

	// resourceMap deduplicates resource nodes by human name
	// (table/queue/bucket name, or the "{type}-unknown" fallback).
	resourceMap map[string]graph.NodeID

	currentRepo   string
	currentCommit string

	log logger.Logger
}

// New creates a builder over an empty graph.
func New(log logger.Logger) *Builder {
	return &Builder{
		graph:       graph.New(),
		serviceMap:  make(map[string]graph.NodeID),
		resourceMap: make(map[string]graph.NodeID),
		log:         log.WithComponent("graph-builder"),
	}
}

// FromGraph loads an existing graph for incremental survey, rebuilding the
// service and resource indexes so new discoveries merge with existing
// nodes.
func FromGraph(g *graph.Graph, log logger.Logger) *Builder {
	b := New(log)
	b.graph = g
	for _, node := range g.Nodes() {
		switch node.ID.Kind {
		case graph.KindService:
			b.serviceMap[node.DisplayName] = node.ID
		case graph.KindDatabase, graph.KindQueue, graph.KindCloudResource:
			b.resourceMap[node.DisplayName] = node.ID
		}
	}
	return b
}

// SetRepoContext sets the namespace and commit for subsequent operations.
func (b *Builder) SetRepoContext(repoName, commitSHA string) {
	b.currentRepo = repoName
	b.currentCommit = commitSHA
}

func (b *Builder) namespace() string {
	if b.currentRepo == "" {
		return "unknown"
	}
	return b.currentRepo
}

// AddService processes a service discovery and returns its node ID. Two
// services with the same name map to the same node.
func (b *Builder) AddService(d parser.ServiceDiscovery) graph.NodeID {
	if existing, ok := b.serviceMap[d.Name]; ok {
		return existing
	}

	id, err := graph.NewNodeID(graph.KindService, b.namespace(), d.Name)
	if err != nil {
		b.log.Warn("skipping service with invalid id", logger.String("name", d.Name), logger.Error(err))
		return graph.NodeID{}
	}

	node, err := graph.NewNode(id, d.Name)
	if err != nil {
		b.log.Warn("skipping service node", logger.String("name", d.Name), logger.Error(err))
		return graph.NodeID{}
	}

	node.SetAttribute("language", graph.StringValue(d.Language))
	node.SetAttribute("entry_point", graph.StringValue(d.EntryPoint))
	if d.Framework != "" {
		node.SetAttribute("framework", graph.StringValue(d.Framework))
	}
	if b.currentRepo != "" {
		node.SetAttribute("repo_url", graph.StringValue(b.currentRepo))
	}
	applyDeploymentMetadata(node, d.Deployment)

	node.Metadata.SourceFile = d.SourceFile
	node.Metadata.SourceLine = d.SourceLine
	node.Metadata.CommitSHA = b.currentCommit
	node.Metadata.Source = sourceForFile(d.SourceFile)

	if err := b.graph.UpsertNode(node); err != nil {
		b.log.Error("failed to upsert service node", logger.String("id", id.String()), logger.Error(err))
		return graph.NodeID{}
	}
	b.serviceMap[d.Name] = id
	return id
}

// ProcessDiscoveries folds all discoveries from a repository into the
// graph for the given service.
func (b *Builder) ProcessDiscoveries(discoveries []parser.Discovery, serviceID graph.NodeID) {
	for _, d := range discoveries {
		switch disc := d.(type) {
		case parser.ServiceDiscovery:
			b.AddService(disc)
		case parser.ImportDiscovery:
			// External imports become calls edges only when the module
			// name matches another known service.
			if !disc.IsRelative && b.isKnownService(disc.Module) {
				b.addServiceCall(serviceID, disc.Module, disc.SourceFile, disc.SourceLine)
			}
		case parser.APICallDiscovery:
			b.addAPICall(serviceID, disc)
		case parser.DatabaseAccessDiscovery:
			b.addDatabaseAccess(serviceID, disc)
		case parser.QueueOperationDiscovery:
			b.addQueueOperation(serviceID, disc)
		case parser.CloudResourceDiscovery:
			b.addCloudResource(serviceID, disc)
		}
	}
}

func (b *Builder) isKnownService(module string) bool {
	_, ok := b.serviceMap[module]
	return ok
}

func (b *Builder) addServiceCall(from graph.NodeID, toName, sourceFile string, sourceLine int) {
	to, ok := b.serviceMap[toName]
	if !ok {
		return
	}
	edge, err := graph.NewEdge(from, to, graph.EdgeCalls)
	if err != nil {
		b.log.Warn("skipping calls edge", logger.Error(err))
		return
	}
	edge.AddEvidence(evidence(sourceFile, sourceLine))
	if err := b.graph.UpsertEdge(edge); err != nil {
		b.log.Warn("failed to upsert calls edge", logger.Error(err))
	}
}

// addAPICall records an outbound HTTP call as an entry in the service
// node's api_calls list attribute. Targets are not resolved to service
// nodes; that linking belongs to a later analysis.
func (b *Builder) addAPICall(serviceID graph.NodeID, call parser.APICallDiscovery) {
	node, ok := b.graph.GetNode(serviceID)
	if !ok {
		return
	}

	entry := map[string]graph.AttrValue{
		"target": graph.StringValue(call.Target),
		"source": graph.StringValue(evidence(call.SourceFile, call.SourceLine)),
	}
	if call.Method != "" {
		entry["method"] = graph.StringValue(call.Method)
	}

	existing, _ := node.Attribute("api_calls")
	list := existing.List
	list = append(list, graph.MapValue(entry))
	node.SetAttribute("api_calls", graph.ListValue(list))
}

func (b *Builder) addDatabaseAccess(serviceID graph.NodeID, db parser.DatabaseAccessDiscovery) {
	name := db.TableName
	if name == "" {
		name = fmt.Sprintf("%s-unknown", db.DBType)
	}

	dbID, ok := b.ensureResource(graph.KindDatabase, name, func(node *graph.Node) {
		node.SetAttribute("db_type", graph.StringValue(db.DBType))
		applyDeploymentMetadata(node, db.Deployment)
		node.Metadata.SourceFile = db.SourceFile
		node.Metadata.SourceLine = db.SourceLine
		node.Metadata.Source = sourceForFile(db.SourceFile)
	})
	if !ok {
		return
	}

	kind := graph.EdgeReads
	switch db.Operation {
	case parser.OpWrite:
		kind = graph.EdgeWrites
	case parser.OpRead, parser.OpReadWrite, parser.OpUnknown:
		kind = graph.EdgeReads
	}
	b.addResourceEdge(serviceID, dbID, kind, db.SourceFile, db.SourceLine)

	if db.Operation == parser.OpReadWrite {
		b.addResourceEdge(serviceID, dbID, graph.EdgeWrites, db.SourceFile, db.SourceLine)
	}
}

func (b *Builder) addQueueOperation(serviceID graph.NodeID, q parser.QueueOperationDiscovery) {
	name := q.QueueName
	if name == "" {
		name = fmt.Sprintf("%s-unknown", q.QueueType)
	}

	queueID, ok := b.ensureResource(graph.KindQueue, name, func(node *graph.Node) {
		node.SetAttribute("queue_type", graph.StringValue(q.QueueType))
		applyDeploymentMetadata(node, q.Deployment)
		node.Metadata.SourceFile = q.SourceFile
		node.Metadata.SourceLine = q.SourceLine
		node.Metadata.Source = sourceForFile(q.SourceFile)
	})
	if !ok {
		return
	}

	kind := graph.EdgePublishes
	if q.Operation == parser.QueueOpSubscribe {
		kind = graph.EdgeSubscribes
	}
	// Unknown operations default to publishes: a service holding a queue
	// handle is more often a producer.
	b.addResourceEdge(serviceID, queueID, kind, q.SourceFile, q.SourceLine)
}

func (b *Builder) addCloudResource(serviceID graph.NodeID, r parser.CloudResourceDiscovery) {
	name := r.ResourceName
	if name == "" {
		name = fmt.Sprintf("%s-unknown", r.ResourceType)
	}

	resourceID, ok := b.ensureResource(graph.KindCloudResource, name, func(node *graph.Node) {
		node.SetAttribute("resource_type", graph.StringValue(r.ResourceType))
		applyDeploymentMetadata(node, r.Deployment)
		node.Metadata.SourceFile = r.SourceFile
		node.Metadata.SourceLine = r.SourceLine
		node.Metadata.Source = sourceForFile(r.SourceFile)
	})
	if !ok {
		return
	}

	b.addResourceEdge(serviceID, resourceID, graph.EdgeUses, r.SourceFile, r.SourceLine)
}

// ensureResource returns the node ID for a named resource, creating the
// node on first sight. The per-builder resource map deduplicates across
// every discovery in the session; later discoveries of the same resource
// still enrich the node (merged attributes, latest metadata wins), so an
// IaC definition seen after a code reference fills in deployment details.
func (b *Builder) ensureResource(kind graph.NodeKind, name string, populate func(*graph.Node)) (graph.NodeID, bool) {
	if id, ok := b.resourceMap[name]; ok {
		if node, found := b.graph.GetNode(id); found {
			populate(node)
		}
		return id, true
	}

	id, err := graph.NewNodeID(kind, b.namespace(), name)
	if err != nil {
		b.log.Warn("skipping resource with invalid id", logger.String("name", name), logger.Error(err))
		return graph.NodeID{}, false
	}
	node, err := graph.NewNode(id, name)
	if err != nil {
		b.log.Warn("skipping resource node", logger.String("name", name), logger.Error(err))
		return graph.NodeID{}, false
	}
	populate(node)
	node.Metadata.CommitSHA = b.currentCommit

	if err := b.graph.UpsertNode(node); err != nil {
		b.log.Error("failed to upsert resource node", logger.String("id", id.String()), logger.Error(err))
		return graph.NodeID{}, false
	}
	b.resourceMap[name] = id
	return id, true
}

func (b *Builder) addResourceEdge(from, to graph.NodeID, kind graph.EdgeKind, sourceFile string, sourceLine int) {
	if from.IsZero() || to.IsZero() {
		return
	}
	edge, err := graph.NewEdge(from, to, kind)
	if err != nil {
		b.log.Warn("skipping edge", logger.Error(err))
		return
	}
	edge.AddEvidence(evidence(sourceFile, sourceLine))
	if err := b.graph.UpsertEdge(edge); err != nil {
		b.log.Warn("failed to upsert edge", logger.Error(err))
	}
}

// applyDeploymentMetadata promotes deployment metadata fields to node
// attributes.
func applyDeploymentMetadata(node *graph.Node, dm *parser.DeploymentMetadata) {
	if dm == nil {
		return
	}
	if dm.DeploymentMethod != "" {
		node.SetAttribute("deployment_method", graph.StringValue(dm.DeploymentMethod))
	}
	if dm.TerraformWorkspace != "" {
		node.SetAttribute("terraform_workspace", graph.StringValue(dm.TerraformWorkspace))
	}
	if dm.Environment != "" {
		node.SetAttribute("environment", graph.StringValue(dm.Environment))
	}
	if dm.StackName != "" {
		node.SetAttribute("stack_name", graph.StringValue(dm.StackName))
	}
	if len(dm.Tags) > 0 {
		tags := make(map[string]graph.AttrValue, len(dm.Tags))
		for k, v := range dm.Tags {
			tags[k] = graph.StringValue(v)
		}
		node.SetAttribute("tags", graph.MapValue(tags))
	}
}

// sourceForFile maps a discovery's source file to the parser that
// produced it.
func sourceForFile(path string) graph.DiscoverySource {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".") {
	case "py":
		return graph.SourcePythonParser
	case "tf", "tfvars":
		return graph.SourceTerraformParser
	case "yaml", "yml":
		return graph.SourceCloudFormationParser
	case "json":
		// package.json feeds the JS service inference; any other JSON
		// reaching the builder is a CloudFormation template.
		if strings.ToLower(filepath.Base(path)) == "package.json" {
			return graph.SourceJavaScriptParser
		}
		return graph.SourceCloudFormationParser
	case "js", "jsx", "ts", "tsx", "mjs", "cjs":
		return graph.SourceJavaScriptParser
	default:
		return graph.SourceManual
	}
}

func evidence(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}

// Build publishes the graph, leaving the builder empty.
func (b *Builder) Build() *graph.Graph {
	g := b.graph
	b.graph = graph.New()
	b.serviceMap = make(map[string]graph.NodeID)
	b.resourceMap = make(map[string]graph.NodeID)
	return g
}

// Graph returns the in-flight graph without publishing it.
func (b *Builder) Graph() *graph.Graph {
	return b.graph
}
