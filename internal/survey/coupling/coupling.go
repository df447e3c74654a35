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

// Package coupling infers resource ownership and derives implicit
// coupling relations between services that share data stores, queues, or
// cloud resources, with per-pair risk classification.
package coupling

import (
	"fmt"
	"strings"

	"github.com/garrettyarmo/forge/internal/graph"
	"github.com/garrettyarmo/forge/internal/logger"
)

// Risk classifies an implicit coupling by how the pair accesses the
// shared resource.
type Risk int

const (
	// RiskLow: neither service writes.
	RiskLow Risk = iota
	// RiskMedium: exactly one service writes.
	RiskMedium
	// RiskHigh: both services write.
	RiskHigh
)

func (r Risk) String() string {
	switch r {
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	default:
		return "low"
	}
}

// Confidence returns the edge confidence derived from the risk class.
func (r Risk) Confidence() float64 {
	switch r {
	case RiskHigh:
		return 0.95
	case RiskMedium:
		return 0.80
	default:
		return 0.60
	}
}

// ReasonKind discriminates the ownership inference strategies.
type ReasonKind int

const (
	ReasonTerraformDefinition ReasonKind = iota
	ReasonNamingConvention
	ReasonExclusiveWriter
)

// OwnershipReason records why a resource was assigned an owner.
type OwnershipReason struct {
	Kind ReasonKind
	File string // terraform file, for ReasonTerraformDefinition
}

func (r OwnershipReason) String() string {
	switch r.Kind {
	case ReasonTerraformDefinition:
		return fmt.Sprintf("TerraformDefinition(%s)", r.File)
	case ReasonNamingConvention:
		return "NamingConvention"
	case ReasonExclusiveWriter:
		return "ExclusiveWriter"
	default:
		return "Unknown"
	}
}

// OwnershipAssignment is an inferred resource owner.
type OwnershipAssignment struct {
	Resource   graph.NodeID
	Owner      graph.NodeID
	Reason     OwnershipReason
	Confidence float64
}

// ImplicitCoupling is a derived relation between two services sharing at
// least one resource.
type ImplicitCoupling struct {
	ServiceA        graph.NodeID
	ServiceB        graph.NodeID
	SharedResources []graph.NodeID
	Reason          string
	Risk            Risk
}

// AccessType distinguishes shared reads from shared writes.
type AccessType int

const (
	AccessRead AccessType = iota
	AccessWrite
)

// SharedAccess is a non-owner access to an owned resource.
type SharedAccess struct {
	Service  graph.NodeID
	Resource graph.NodeID
	Owner    graph.NodeID
	Access   AccessType
	Evidence []AccessEvidence
}

// Result is the outcome of a coupling analysis.
type Result struct {
	OwnershipAssignments []OwnershipAssignment
	ImplicitCouplings    []ImplicitCoupling
	SharedReads          []SharedAccess
	SharedWrites         []SharedAccess
}

// HighRiskCouplings returns the couplings classified as high risk, for
// surfacing as warnings.
func (r *Result) HighRiskCouplings() []ImplicitCoupling {
	var high []ImplicitCoupling
	for _, c := range r.ImplicitCouplings {
		if c.Risk == RiskHigh {
			high = append(high, c)
		}
	}
	return high
}

// Analyzer runs the four-step coupling pipeline over a completed graph:
// access map, ownership inference, implicit coupling detection, and
// shared-access edge generation.
type Analyzer struct {
	graph     *graph.Graph
	accessMap *ResourceAccessMap
	log       logger.Logger
}

// NewAnalyzer creates an analyzer over a completed graph.
func NewAnalyzer(g *graph.Graph, log logger.Logger) *Analyzer {
	return &Analyzer{
		graph:     g,
		accessMap: NewResourceAccessMap(),
		log:       log.WithComponent("coupling-analyzer"),
	}
}

// AccessMap exposes the built access map, for diagnostics.
func (a *Analyzer) AccessMap() *ResourceAccessMap { return a.accessMap }

// Analyze runs the pipeline and returns the result. The graph is not
// mutated; call Result.ApplyToGraph for that.
func (a *Analyzer) Analyze() *Result {
	a.buildAccessMap()

	result := &Result{
		OwnershipAssignments: a.inferOwnership(),
		ImplicitCouplings:    a.detectImplicitCouplings(),
	}
	result.SharedReads, result.SharedWrites = a.generateSharedAccess(result.OwnershipAssignments)

	a.log.Info("coupling analysis complete",
		logger.Int("resources", a.accessMap.ResourceCount()),
		logger.Int("ownerships", len(result.OwnershipAssignments)),
		logger.Int("couplings", len(result.ImplicitCouplings)))
	return result
}

// buildAccessMap scans every service-to-resource edge into reader/writer
// sets.
func (a *Analyzer) buildAccessMap() {
	for _, edge := range a.graph.Edges() {
		source, ok := a.graph.GetNode(edge.Source)
		if !ok || source.ID.Kind != graph.KindService {
			continue
		}
		target, ok := a.graph.GetNode(edge.Target)
		if !ok {
			continue
		}
		switch target.ID.Kind {
		case graph.KindDatabase, graph.KindQueue, graph.KindCloudResource:
		default:
			continue
		}

		file, line := firstEvidence(edge)
		ev := AccessEvidence{
			SourceFile:      file,
			SourceLine:      line,
			DetectionMethod: string(edge.Kind),
			Confidence:      1.0,
		}
		if edge.Metadata.Confidence != nil {
			ev.Confidence = *edge.Metadata.Confidence
		}

		switch edge.Kind {
		case graph.EdgeReads, graph.EdgeReadsShared, graph.EdgeSubscribes, graph.EdgeUses:
			// Generic uses counts as a read.
			a.accessMap.RecordRead(edge.Source, edge.Target, ev)
		case graph.EdgeWrites, graph.EdgeWritesShared, graph.EdgePublishes:
			a.accessMap.RecordWrite(edge.Source, edge.Target, ev)
		case graph.EdgeOwns:
			a.accessMap.SetOwner(edge.Target, edge.Source)
		}
	}
}

// firstEvidence splits the edge's first "file:line" evidence reference.
func firstEvidence(edge *graph.Edge) (string, int) {
	if len(edge.Metadata.Evidence) == 0 {
		return "unknown", 0
	}
	ref := edge.Metadata.Evidence[0]
	if idx := strings.LastIndex(ref, ":"); idx > 0 {
		line := 0
		if _, err := fmt.Sscanf(ref[idx+1:], "%d", &line); err == nil {
			return ref[:idx], line
		}
	}
	return ref, 0
}

// inferOwnership assigns an owner to every resource without an explicit
// one, first match wins: terraform definition (0.9), naming convention
// (0.7), exclusive writer (0.6).
func (a *Analyzer) inferOwnership() []OwnershipAssignment {
	var assignments []OwnershipAssignment
	for _, resource := range a.accessMap.Resources() {
		if _, owned := a.accessMap.Owner(resource); owned {
			continue
		}
		if assignment, ok := a.inferResourceOwner(resource); ok {
			assignments = append(assignments, assignment)
		}
	}
	return assignments
}

func (a *Analyzer) inferResourceOwner(resourceID graph.NodeID) (OwnershipAssignment, bool) {
	resource, ok := a.graph.GetNode(resourceID)
	if !ok {
		return OwnershipAssignment{}, false
	}

	// Strategy 1: resource defined in Terraform. The owner is the service
	// named like the directory above the terraform/ or infra/ dir.
	if sourceFile := resource.Metadata.SourceFile; strings.HasSuffix(sourceFile, ".tf") {
		if owner, ok := a.serviceAboveTerraformDir(sourceFile); ok {
			return OwnershipAssignment{
				Resource:   resourceID,
				Owner:      owner,
				Reason:     OwnershipReason{Kind: ReasonTerraformDefinition, File: sourceFile},
				Confidence: 0.9,
			}, true
		}
	}

	// Strategy 2: naming convention. A service whose name prefixes or is
	// contained in the resource's display name owns it.
	resourceName := resource.DisplayName
	for _, service := range a.graph.NodesByKind(graph.KindService) {
		serviceName := service.DisplayName
		if strings.Contains(resourceName, serviceName) ||
			strings.HasPrefix(resourceName, serviceName+"-") ||
			strings.HasPrefix(resourceName, serviceName+"_") {
			return OwnershipAssignment{
				Resource:   resourceID,
				Owner:      service.ID,
				Reason:     OwnershipReason{Kind: ReasonNamingConvention},
				Confidence: 0.7,
			}, true
		}
	}

	// Strategy 3: exclusive writer.
	if writers := a.accessMap.Writers(resourceID); len(writers) == 1 {
		return OwnershipAssignment{
			Resource:   resourceID,
			Owner:      writers[0],
			Reason:     OwnershipReason{Kind: ReasonExclusiveWriter},
			Confidence: 0.6,
		}, true
	}

	return OwnershipAssignment{}, false
}

// serviceAboveTerraformDir resolves ".../user-service/terraform/main.tf"
// to the service node named "user-service".
func (a *Analyzer) serviceAboveTerraformDir(tfFile string) (graph.NodeID, bool) {
	components := strings.Split(strings.ReplaceAll(tfFile, "\\", "/"), "/")
	for i, component := range components {
		if component != "terraform" && component != "infra" {
			continue
		}
		if i == 0 {
			continue
		}
		repoName := components[i-1]
		for _, service := range a.graph.NodesByKind(graph.KindService) {
			if service.DisplayName == repoName || service.ID.Name == repoName {
				return service.ID, true
			}
		}
	}
	return graph.NodeID{}, false
}

// detectImplicitCouplings emits one coupling per unordered service pair
// sharing a resource. The owner is included: it is still coupled to every
// other accessor. Pairs coupled via multiple resources accumulate
// shared_resources instead of duplicating.
func (a *Analyzer) detectImplicitCouplings() []ImplicitCoupling {
	var couplings []ImplicitCoupling
	index := make(map[[2]string]int) // canonical pair -> index in couplings

	for _, resource := range a.accessMap.Resources() {
		services := a.accessMap.Accessors(resource)
		if len(services) <= 1 {
			continue
		}

		for i := 0; i < len(services); i++ {
			for j := i + 1; j < len(services); j++ {
				serviceA, serviceB := services[i], services[j]
				pair := [2]string{serviceA.String(), serviceB.String()}
				if pair[1] < pair[0] {
					pair[0], pair[1] = pair[1], pair[0]
				}

				if idx, seen := index[pair]; seen {
					couplings[idx].SharedResources = append(couplings[idx].SharedResources, resource)
					continue
				}

				aWrites := a.accessMap.IsWriter(serviceA, resource)
				bWrites := a.accessMap.IsWriter(serviceB, resource)
				risk := RiskLow
				switch {
				case aWrites && bWrites:
					risk = RiskHigh
				case aWrites || bWrites:
					risk = RiskMedium
				}

				resourceName := resource.Name
				if node, ok := a.graph.GetNode(resource); ok {
					resourceName = node.DisplayName
				}

				index[pair] = len(couplings)
				couplings = append(couplings, ImplicitCoupling{
					ServiceA:        serviceA,
					ServiceB:        serviceB,
					SharedResources: []graph.NodeID{resource},
					Reason:          couplingReason(risk, resourceName),
					Risk:            risk,
				})
			}
		}
	}

	return couplings
}

func couplingReason(risk Risk, resource string) string {
	switch risk {
	case RiskHigh:
		return fmt.Sprintf("Both services write to shared resource '%s' - potential race conditions", resource)
	case RiskMedium:
		return fmt.Sprintf("Services share resource '%s' (one writes, one reads) - schema changes affect both", resource)
	default:
		return fmt.Sprintf("Services share read access to '%s' - changes to data may affect both", resource)
	}
}

// generateSharedAccess emits reads_shared/writes_shared records for every
// non-owner access to an owned resource. Ownership covers both explicit
// owns edges and the assignments inferred this run.
func (a *Analyzer) generateSharedAccess(assignments []OwnershipAssignment) ([]SharedAccess, []SharedAccess) {
	inferred := make(map[string]graph.NodeID, len(assignments))
	for _, assignment := range assignments {
		inferred[assignment.Resource.String()] = assignment.Owner
	}
	ownerOf := func(resource graph.NodeID) (graph.NodeID, bool) {
		if owner, ok := a.accessMap.Owner(resource); ok {
			return owner, true
		}
		owner, ok := inferred[resource.String()]
		return owner, ok
	}

	var sharedReads, sharedWrites []SharedAccess
	for _, resource := range a.accessMap.Resources() {
		owner, ok := ownerOf(resource)
		if !ok {
			continue
		}

		for _, reader := range a.accessMap.Readers(resource) {
			if reader == owner {
				continue
			}
			sharedReads = append(sharedReads, SharedAccess{
				Service:  reader,
				Resource: resource,
				Owner:    owner,
				Access:   AccessRead,
				Evidence: a.accessMap.Evidence(reader, resource),
			})
		}
		for _, writer := range a.accessMap.Writers(resource) {
			if writer == owner {
				continue
			}
			sharedWrites = append(sharedWrites, SharedAccess{
				Service:  writer,
				Resource: resource,
				Owner:    owner,
				Access:   AccessWrite,
				Evidence: a.accessMap.Evidence(writer, resource),
			})
		}
	}
	return sharedReads, sharedWrites
}

// ApplyToGraph adds the analysis results as edges: owns (skipping any
// already present), reads_shared, writes_shared, and implicitly_coupled,
// all via idempotent upsert.
func (r *Result) ApplyToGraph(g *graph.Graph) error {
	for _, assignment := range r.OwnershipAssignments {
		alreadyOwned := false
		for _, e := range g.EdgesFrom(assignment.Owner) {
			if e.Kind == graph.EdgeOwns && e.Target == assignment.Resource {
				alreadyOwned = true
				break
			}
		}
		if alreadyOwned {
			continue
		}

		edge, err := graph.NewEdge(assignment.Owner, assignment.Resource, graph.EdgeOwns)
		if err != nil {
			return err
		}
		edge.SetConfidence(assignment.Confidence)
		edge.Metadata.Reason = assignment.Reason.String()
		if err := g.UpsertEdge(edge); err != nil {
			return err
		}
	}

	for _, access := range r.SharedReads {
		if err := applySharedAccess(g, access, graph.EdgeReadsShared,
			fmt.Sprintf("Reads resource owned by %s", access.Owner.Name)); err != nil {
			return err
		}
	}
	for _, access := range r.SharedWrites {
		if err := applySharedAccess(g, access, graph.EdgeWritesShared,
			fmt.Sprintf("Writes to resource owned by %s", access.Owner.Name)); err != nil {
			return err
		}
	}

	for _, c := range r.ImplicitCouplings {
		edge, err := graph.NewEdge(c.ServiceA, c.ServiceB, graph.EdgeImplicitlyCoupled)
		if err != nil {
			return err
		}
		edge.SetConfidence(c.Risk.Confidence())
		edge.Metadata.Reason = c.Reason

		names := make([]string, 0, len(c.SharedResources))
		for _, resource := range c.SharedResources {
			if node, ok := g.GetNode(resource); ok {
				names = append(names, node.DisplayName)
			}
		}
		edge.AddEvidence(fmt.Sprintf("Shared resources: %s", strings.Join(names, ", ")))

		if err := g.UpsertEdge(edge); err != nil {
			return err
		}
	}

	return nil
}

func applySharedAccess(g *graph.Graph, access SharedAccess, kind graph.EdgeKind, reason string) error {
	edge, err := graph.NewEdge(access.Service, access.Resource, kind)
	if err != nil {
		return err
	}
	edge.Metadata.Reason = reason
	for _, ev := range access.Evidence {
		edge.AddEvidence(fmt.Sprintf("%s:%d", ev.SourceFile, ev.SourceLine))
	}
	return g.UpsertEdge(edge)
}
