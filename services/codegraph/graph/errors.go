// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

var (
	// ErrInvalidLabel is returned when a node carries a label outside the
	// fixed enumerated set.
	ErrInvalidLabel = errors.New("graph: invalid node label")

	// ErrInvalidRelType is returned when a relationship carries a type
	// outside the fixed enumerated set.
	ErrInvalidRelType = errors.New("graph: invalid relationship type")

	// ErrEmptyNodeID is returned when a node with an empty id is added.
	ErrEmptyNodeID = errors.New("graph: empty node id")

	// ErrNodeNotFound is returned by lookups for an unknown node id.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrDanglingEndpoint is returned when a relationship references a
	// source or target node that does not exist in the graph.
	ErrDanglingEndpoint = errors.New("graph: relationship endpoint not in graph")
)
