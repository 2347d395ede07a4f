// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package taxonomy defines the domain error kinds shared by the category
// hierarchy engine. Callers inspect them with errors.As; the API layer maps
// each kind to a status code.
package taxonomy

import "fmt"

// ValidationError indicates malformed input. Always recoverable by the
// caller and never partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NotFoundError indicates a referenced category or target does not exist.
type NotFoundError struct {
	Kind string // "category", "parent", "target"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// CycleError indicates a move that would make a node its own ancestor.
type CycleError struct {
	NodeID   string
	ParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("moving category %s under %s would create a cycle", e.NodeID, e.ParentID)
}

// DuplicateSlugError indicates a sibling slug collision for a language.
type DuplicateSlugError struct {
	ParentID string // "" for root siblings
	Language string
	Slug     string
}

func (e *DuplicateSlugError) Error() string {
	scope := "root"
	if e.ParentID != "" {
		scope = "parent " + e.ParentID
	}
	return fmt.Sprintf("slug %q already used for language %q under %s", e.Slug, e.Language, scope)
}

// InvalidOperationError indicates a deletion policy incompatible with the
// current node state.
type InvalidOperationError struct {
	Message string
}

func (e *InvalidOperationError) Error() string {
	return "invalid operation: " + e.Message
}

// ConcurrentModificationError indicates an optimistic-lock version mismatch.
// The caller should retry with fresh state.
type ConcurrentModificationError struct {
	ID              string
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("category %s was modified concurrently (expected version %d)", e.ID, e.ExpectedVersion)
}
