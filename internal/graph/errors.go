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

import "errors"

// Graph integrity violations are programming errors: callers are expected
// to abort the survey pass rather than continue with a corrupt graph.
var (
	// ErrMalformedID indicates a node ID with an empty or invalid component.
	ErrMalformedID = errors.New("malformed node id")

	// ErrDuplicateID indicates an AddNode call for an ID already in the graph.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrKindConflict indicates an upsert that would change a node's kind.
	ErrKindConflict = errors.New("node kind is immutable")

	// ErrUnknownEndpoint indicates an edge whose source or target is not in the graph.
	ErrUnknownEndpoint = errors.New("edge endpoint not in graph")

	// ErrOwnershipConflict indicates a second owns edge into a resource.
	ErrOwnershipConflict = errors.New("resource already has an owner")
)
