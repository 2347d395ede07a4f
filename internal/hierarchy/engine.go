// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package hierarchy implements the tree algorithms of the taxonomy engine:
// materialized path generation, cycle detection, level computation and batch
// subtree path rewrites. It reads through the store but never writes.
package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
	"github.com/olegiv/otax-go/internal/util"
)

// DefaultMaxDepth bounds the hierarchy depth when no configuration is given.
const DefaultMaxDepth = 10

// Engine performs structural computations over the category tree.
type Engine struct {
	queries     *store.Queries
	maxDepth    int
	defaultLang string
}

// New creates an Engine over the given query set.
func New(q *store.Queries, maxDepth int, defaultLanguage string) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{queries: q, maxDepth: maxDepth, defaultLang: defaultLanguage}
}

// MaxDepth returns the configured maximum hierarchy depth.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// PathSegment builds the path segment for a node from the best-available
// slug, falling back to a slugified name.
func (e *Engine) PathSegment(slug, name model.MultilingualText) (string, error) {
	segment := slug.Resolve(e.defaultLang)
	if segment == "" {
		segment = util.Slugify(name.Resolve(e.defaultLang))
	}
	if segment == "" {
		return "", &taxonomy.ValidationError{Field: "slug", Message: "cannot derive a path segment from slug or name"}
	}
	if !util.IsValidSlug(segment) {
		return "", &taxonomy.ValidationError{Field: "slug", Message: fmt.Sprintf("invalid slug %q", segment)}
	}
	return segment, nil
}

// ComputePath returns the materialized path and level for a node placed
// under parent (nil for roots). Depth beyond the configured maximum fails
// with a validation error.
func (e *Engine) ComputePath(parent *model.Category, slug, name model.MultilingualText) (string, int, error) {
	segment, err := e.PathSegment(slug, name)
	if err != nil {
		return "", 0, err
	}
	if parent == nil {
		return "/" + segment, 0, nil
	}
	level := parent.Level + 1
	if level >= e.maxDepth {
		return "", 0, &taxonomy.ValidationError{
			Field:   "parent_id",
			Message: fmt.Sprintf("maximum hierarchy depth %d exceeded", e.maxDepth),
		}
	}
	return util.JoinPath(parent.Path, segment), level, nil
}

// WouldCreateCycle walks the candidate parent's ancestor chain looking for
// nodeID. Re-parenting a node onto itself or onto any of its descendants is
// a cycle. The walk is bounded by the maximum depth.
func (e *Engine) WouldCreateCycle(ctx context.Context, nodeID, candidateParentID string) (bool, error) {
	if nodeID == candidateParentID {
		return true, nil
	}
	current := candidateParentID
	for steps := 0; steps <= e.maxDepth; steps++ {
		node, err := e.queries.GetCategoryByID(ctx, current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, &taxonomy.NotFoundError{Kind: "parent", ID: current}
			}
			return false, fmt.Errorf("cycle check: %w", err)
		}
		if node.ParentID == nil {
			return false, nil
		}
		if *node.ParentID == nodeID {
			return true, nil
		}
		current = *node.ParentID
	}
	return false, fmt.Errorf("cycle check: ancestor chain of %s exceeds max depth %d", candidateParentID, e.maxDepth)
}

// PathRewrite is one entry of a batch subtree rewrite.
type PathRewrite struct {
	ID              string
	NewPath         string
	NewLevel        int
	ExpectedVersion int64
}

// RebuildDescendantPaths recomputes path and level for every descendant of a
// node whose own path changed from oldPath to newPath. The whole batch comes
// from a single prefix-range query; no per-node recursion.
func (e *Engine) RebuildDescendantPaths(ctx context.Context, oldPath, newPath string, levelDelta int) ([]PathRewrite, error) {
	if oldPath == newPath && levelDelta == 0 {
		return nil, nil
	}
	descendants, err := e.queries.ListDescendants(ctx, oldPath)
	if err != nil {
		return nil, fmt.Errorf("rebuild paths: %w", err)
	}

	rewrites := make([]PathRewrite, 0, len(descendants))
	for _, d := range descendants {
		newLevel := d.Level + levelDelta
		if newLevel >= e.maxDepth {
			return nil, &taxonomy.ValidationError{
				Field:   "parent_id",
				Message: fmt.Sprintf("move would push %s beyond maximum depth %d", d.Path, e.maxDepth),
			}
		}
		rewrites = append(rewrites, PathRewrite{
			ID:              d.ID,
			NewPath:         util.ReplacePathPrefix(d.Path, oldPath, newPath),
			NewLevel:        newLevel,
			ExpectedVersion: d.Version,
		})
	}
	return rewrites, nil
}

// CheckSlugUnique verifies that no sibling under parentID uses any of the
// given slug values for the same language. excludeID skips the node itself
// on updates.
func (e *Engine) CheckSlugUnique(ctx context.Context, parentID *string, slug model.MultilingualText, excludeID string) error {
	for _, lang := range slug.Languages() {
		value, _ := slug.Get(lang)
		exists, err := e.queries.SlugExists(ctx, parentID, lang, value, excludeID)
		if err != nil {
			return fmt.Errorf("slug uniqueness: %w", err)
		}
		if exists {
			scope := ""
			if parentID != nil {
				scope = *parentID
			}
			return &taxonomy.DuplicateSlugError{ParentID: scope, Language: lang, Slug: value}
		}
	}
	return nil
}

// Ancestors returns the strict ancestor chain of a node, nearest first,
// bounded by the maximum depth.
func (e *Engine) Ancestors(ctx context.Context, node *model.Category) ([]model.Category, error) {
	var chain []model.Category
	current := node.ParentID
	for steps := 0; current != nil && steps <= e.maxDepth; steps++ {
		parent, err := e.queries.GetCategoryByID(ctx, *current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &taxonomy.NotFoundError{Kind: "parent", ID: *current}
			}
			return nil, fmt.Errorf("ancestors: %w", err)
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}
	if current != nil {
		return nil, fmt.Errorf("ancestors: chain of %s exceeds max depth %d", node.ID, e.maxDepth)
	}
	return chain, nil
}
