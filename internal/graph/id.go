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
	"strings"
)

// NodeKind classifies a node in the knowledge graph.
type NodeKind string

const (
	KindService       NodeKind = "service"
	KindDatabase      NodeKind = "database"
	KindQueue         NodeKind = "queue"
	KindCloudResource NodeKind = "cloud_resource"
	KindAPI           NodeKind = "api"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindService, KindDatabase, KindQueue, KindCloudResource, KindAPI:
		return true
	}
	return false
}

// NodeID is the canonical (kind, namespace, name) identity of a node.
// The namespace is the full repository name ("owner/repo") or "local";
// the name is a slug unique within (kind, namespace). The external string
// form is "kind:namespace:name".
type NodeID struct {
	Kind      NodeKind
	Namespace string
	Name      string
}

// NewNodeID builds a validated NodeID. The name is slugified so that
// display names with spaces or mixed case produce stable identities.
func NewNodeID(kind NodeKind, namespace, name string) (NodeID, error) {
	if !kind.Valid() {
		return NodeID{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedID, kind)
	}
	if namespace == "" {
		return NodeID{}, fmt.Errorf("%w: empty namespace", ErrMalformedID)
	}
	if strings.Contains(namespace, ":") {
		return NodeID{}, fmt.Errorf("%w: namespace %q contains ':'", ErrMalformedID, namespace)
	}
	slug := Slugify(name)
	if slug == "" {
		return NodeID{}, fmt.Errorf("%w: empty name", ErrMalformedID)
	}
	return NodeID{Kind: kind, Namespace: namespace, Name: slug}, nil
}

// ParseNodeID parses the external "kind:namespace:name" form.
func ParseNodeID(s string) (NodeID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return NodeID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	kind := NodeKind(parts[0])
	if !kind.Valid() {
		return NodeID{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedID, parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return NodeID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return NodeID{Kind: kind, Namespace: parts[1], Name: parts[2]}, nil
}

// String returns the external "kind:namespace:name" form.
func (id NodeID) String() string {
	return string(id.Kind) + ":" + id.Namespace + ":" + id.Name
}

// IsZero reports whether the ID is the zero value.
func (id NodeID) IsZero() bool {
	return id.Kind == "" && id.Namespace == "" && id.Name == ""
}

// Slugify lowercases a name and collapses runs of characters other than
// letters, digits, '.' and '_' to single dashes so it is safe inside a
// node ID.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
