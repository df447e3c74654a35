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

package coupling

import (
	"sort"

	"github.com/garrettyarmo/forge/internal/graph"
)

// AccessEvidence records one observation of a service touching a resource.
type AccessEvidence struct {
	SourceFile      string
	SourceLine      int
	DetectionMethod string
	Confidence      float64
}

type accessPair struct {
	service  string
	resource string
}

// ResourceAccessMap tracks, per resource, which services read it, which
// write it, and who explicitly owns it, with per-(service, resource)
// evidence accumulated along the way.
type ResourceAccessMap struct {
	readers  map[string]map[string]graph.NodeID // resource -> reader set
	writers  map[string]map[string]graph.NodeID
	owners   map[string]graph.NodeID
	ids      map[string]graph.NodeID // resource id string -> id
	evidence map[accessPair][]AccessEvidence
}

// NewResourceAccessMap creates an empty access map.
func NewResourceAccessMap() *ResourceAccessMap {
	return &ResourceAccessMap{
		readers:  make(map[string]map[string]graph.NodeID),
		writers:  make(map[string]map[string]graph.NodeID),
		owners:   make(map[string]graph.NodeID),
		ids:      make(map[string]graph.NodeID),
		evidence: make(map[accessPair][]AccessEvidence),
	}
}

// RecordRead registers a service as a reader of a resource.
func (m *ResourceAccessMap) RecordRead(service, resource graph.NodeID, ev AccessEvidence) {
	m.record(m.readers, service, resource, ev)
}

// RecordWrite registers a service as a writer of a resource.
func (m *ResourceAccessMap) RecordWrite(service, resource graph.NodeID, ev AccessEvidence) {
	m.record(m.writers, service, resource, ev)
}

func (m *ResourceAccessMap) record(set map[string]map[string]graph.NodeID, service, resource graph.NodeID, ev AccessEvidence) {
	rKey := resource.String()
	if set[rKey] == nil {
		set[rKey] = make(map[string]graph.NodeID)
	}
	set[rKey][service.String()] = service
	m.ids[rKey] = resource
	pair := accessPair{service.String(), rKey}
	m.evidence[pair] = append(m.evidence[pair], ev)
}

// SetOwner registers the explicit owner of a resource.
func (m *ResourceAccessMap) SetOwner(resource, owner graph.NodeID) {
	m.owners[resource.String()] = owner
	m.ids[resource.String()] = resource
}

// Owner returns the explicit owner of a resource, if any.
func (m *ResourceAccessMap) Owner(resource graph.NodeID) (graph.NodeID, bool) {
	owner, ok := m.owners[resource.String()]
	return owner, ok
}

// Readers returns the readers of a resource in deterministic (sorted ID)
// order.
func (m *ResourceAccessMap) Readers(resource graph.NodeID) []graph.NodeID {
	return sortedValues(m.readers[resource.String()])
}

// Writers returns the writers of a resource in deterministic order.
func (m *ResourceAccessMap) Writers(resource graph.NodeID) []graph.NodeID {
	return sortedValues(m.writers[resource.String()])
}

// Accessors returns the union of readers and writers in deterministic
// order.
func (m *ResourceAccessMap) Accessors(resource graph.NodeID) []graph.NodeID {
	union := make(map[string]graph.NodeID)
	for k, v := range m.readers[resource.String()] {
		union[k] = v
	}
	for k, v := range m.writers[resource.String()] {
		union[k] = v
	}
	return sortedValues(union)
}

// Resources returns every tracked resource in deterministic order.
func (m *ResourceAccessMap) Resources() []graph.NodeID {
	return sortedValues(m.ids)
}

// ResourceCount returns the number of tracked resources.
func (m *ResourceAccessMap) ResourceCount() int { return len(m.ids) }

// Evidence returns the accumulated evidence for a (service, resource)
// pair.
func (m *ResourceAccessMap) Evidence(service, resource graph.NodeID) []AccessEvidence {
	return m.evidence[accessPair{service.String(), resource.String()}]
}

// IsReader reports whether service reads resource.
func (m *ResourceAccessMap) IsReader(service, resource graph.NodeID) bool {
	_, ok := m.readers[resource.String()][service.String()]
	return ok
}

// IsWriter reports whether service writes resource.
func (m *ResourceAccessMap) IsWriter(service, resource graph.NodeID) bool {
	_, ok := m.writers[resource.String()][service.String()]
	return ok
}

func sortedValues(set map[string]graph.NodeID) []graph.NodeID {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ids := make([]graph.NodeID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, set[k])
	}
	return ids
}
