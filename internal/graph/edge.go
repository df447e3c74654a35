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

// EdgeKind classifies a relationship between two nodes.
type EdgeKind string

const (
	EdgeCalls             EdgeKind = "calls"
	EdgeOwns              EdgeKind = "owns"
	EdgeReads             EdgeKind = "reads"
	EdgeWrites            EdgeKind = "writes"
	EdgePublishes         EdgeKind = "publishes"
	EdgeSubscribes        EdgeKind = "subscribes"
	EdgeUses              EdgeKind = "uses"
	EdgeReadsShared       EdgeKind = "reads_shared"
	EdgeWritesShared      EdgeKind = "writes_shared"
	EdgeImplicitlyCoupled EdgeKind = "implicitly_coupled"
)

// Valid reports whether k is one of the known edge kinds.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeCalls, EdgeOwns, EdgeReads, EdgeWrites, EdgePublishes,
		EdgeSubscribes, EdgeUses, EdgeReadsShared, EdgeWritesShared,
		EdgeImplicitlyCoupled:
		return true
	}
	return false
}

// EdgeMetadata carries the provenance of a relationship.
type EdgeMetadata struct {
	Confidence   *float64  `json:"confidence,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Evidence     []string  `json:"evidence"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Edge is a directed arc of the knowledge graph. (source, target, kind) is
// unique: a second insert of the same triple merges into the existing edge.
// implicitly_coupled is logically undirected and is stored once under a
// canonical endpoint order.
type Edge struct {
	Source   NodeID
	Target   NodeID
	Kind     EdgeKind
	Metadata EdgeMetadata
}

// NewEdge creates an edge between two node IDs. For implicitly_coupled
// edges the endpoints are swapped into canonical (lexicographic) order so
// the undirected relation has a single stored representation.
func NewEdge(source, target NodeID, kind EdgeKind) (*Edge, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown edge kind %q", kind)
	}
	if source.IsZero() || target.IsZero() {
		return nil, fmt.Errorf("edge endpoints must be non-zero")
	}
	if kind == EdgeImplicitlyCoupled && target.String() < source.String() {
		source, target = target, source
	}
	return &Edge{
		Source: source,
		Target: target,
		Kind:   kind,
		Metadata: EdgeMetadata{
			Evidence:     []string{},
			DiscoveredAt: time.Now().UTC(),
		},
	}, nil
}

// AddEvidence appends a "file:line" evidence reference.
func (e *Edge) AddEvidence(ref string) {
	e.Metadata.Evidence = append(e.Metadata.Evidence, ref)
}

// SetConfidence sets the confidence score on the edge.
func (e *Edge) SetConfidence(c float64) {
	e.Metadata.Confidence = &c
}
