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

// RelProps is the typed property payload of a relationship.
//
// Each relationship type that carries properties has its own variant, so the
// ingestion phases work with real fields instead of string-keyed bags. Bag()
// flattens the variant into a map at the storage boundary, which is the only
// place a generic property map is needed.
type RelProps interface {
	// Bag returns the flattened property map for storage. Never nil.
	Bag() map[string]any
}

// BagProps is the untyped variant used when a relationship is read back
// from storage, where the original Go type is gone and only the flattened
// map remains.
type BagProps map[string]any

// Bag implements RelProps.
func (p BagProps) Bag() map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return map[string]any(p)
}

// CallProps carries the resolution confidence of a CALLS edge.
//
// Confidence is 1.0 for exact resolutions (same-file or import-resolved),
// 0.8 for receiver-typed and callback/secondary edges, 0.5 for global fuzzy
// matches.
type CallProps struct {
	Confidence float64
}

// Bag implements RelProps.
func (p CallProps) Bag() map[string]any {
	return map[string]any{"confidence": p.Confidence}
}

// ImportProps carries the imported symbol names and the edge role on an
// IMPORTS edge. Role distinguishes module imports from symbol imports.
type ImportProps struct {
	Symbols []string
	Role    string
}

// Bag implements RelProps.
func (p ImportProps) Bag() map[string]any {
	return map[string]any{"symbols": p.Symbols, "role": p.Role}
}

// TypeUseProps carries the usage role of a USES_TYPE edge: "parameter",
// "return", "field", or "variable".
type TypeUseProps struct {
	Role string
}

// Bag implements RelProps.
func (p TypeUseProps) Bag() map[string]any {
	return map[string]any{"role": p.Role}
}

// StepProps carries the 0-based position of a symbol within an execution
// flow on a STEP_IN_PROCESS edge.
type StepProps struct {
	StepNumber int
}

// Bag implements RelProps.
func (p StepProps) Bag() map[string]any {
	return map[string]any{"step_number": p.StepNumber}
}

// CouplingProps carries the evidence behind a COUPLED_WITH edge: the number
// of commits that changed both files and the normalized strength in (0, 1].
type CouplingProps struct {
	Strength  float64
	CoChanges int
}

// Bag implements RelProps.
func (p CouplingProps) Bag() map[string]any {
	return map[string]any{"strength": p.Strength, "co_changes": p.CoChanges}
}
