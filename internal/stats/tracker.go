// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stats maintains the denormalized category counters:
// content_count, subcategory_count and total_content_count. Increments are
// expressed as atomic relative updates at the storage layer; Recalculate is
// the ground-truth recompute used by the repair path and tests.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
)

// Tracker propagates counter deltas through the tree.
type Tracker struct {
	queries *store.Queries
}

// New creates a Tracker over the given query set. Pass transaction-scoped
// queries so counter updates commit with the structural change they belong to.
func New(q *store.Queries) *Tracker {
	return &Tracker{queries: q}
}

// OnChildAdded increments the immediate parent's subcategory_count. The
// counter tracks direct children only, so nothing propagates further up.
func (t *Tracker) OnChildAdded(ctx context.Context, parentID string) error {
	return t.adjust(ctx, parentID, 0, 1, 0)
}

// OnChildRemoved decrements the immediate parent's subcategory_count.
func (t *Tracker) OnChildRemoved(ctx context.Context, parentID string) error {
	return t.adjust(ctx, parentID, 0, -1, 0)
}

// ApplyContentDelta adds delta to the node's content_count and to the
// total_content_count of the node and every strict ancestor.
func (t *Tracker) ApplyContentDelta(ctx context.Context, categoryID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	node, err := t.queries.GetCategoryByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &taxonomy.NotFoundError{Kind: "category", ID: categoryID}
		}
		return fmt.Errorf("content delta: %w", err)
	}
	if node.ContentCount+delta < 0 {
		return &taxonomy.ValidationError{
			Field:   "delta",
			Message: fmt.Sprintf("content_count of %s would become negative", categoryID),
		}
	}

	if err := t.adjust(ctx, categoryID, delta, 0, delta); err != nil {
		return err
	}
	return t.ApplyTotalDeltaToAncestors(ctx, &node, delta)
}

// ApplyTotalDeltaToAncestors walks up via parent_id adding delta to
// total_content_count of every strict ancestor of node.
func (t *Tracker) ApplyTotalDeltaToAncestors(ctx context.Context, node *model.Category, delta int64) error {
	if delta == 0 {
		return nil
	}
	current := node.ParentID
	for current != nil {
		parent, err := t.queries.GetCategoryByID(ctx, *current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &taxonomy.NotFoundError{Kind: "parent", ID: *current}
			}
			return fmt.Errorf("content delta: ancestor %s: %w", *current, err)
		}
		if err := t.adjust(ctx, parent.ID, 0, 0, delta); err != nil {
			return err
		}
		current = parent.ParentID
	}
	return nil
}

// Recalculate recomputes a node's counters from scratch: subcategory_count
// from the live child count, total_content_count from content_count plus the
// children's totals. It is idempotent.
func (t *Tracker) Recalculate(ctx context.Context, categoryID string) (*model.Category, error) {
	node, err := t.queries.GetCategoryByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &taxonomy.NotFoundError{Kind: "category", ID: categoryID}
		}
		return nil, fmt.Errorf("recalculate: %w", err)
	}

	children, err := t.queries.CountChildren(ctx, &node.ID, true)
	if err != nil {
		return nil, fmt.Errorf("recalculate: count children: %w", err)
	}
	childTotals, err := t.queries.SumChildrenTotals(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: sum totals: %w", err)
	}

	node.SubcategoryCount = children
	node.TotalContentCount = node.ContentCount + childTotals
	if err := t.queries.SetCounters(ctx, node.ID, node.ContentCount, node.SubcategoryCount, node.TotalContentCount); err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}
	return &node, nil
}

// RecalculateSubtree repairs every node under root (deepest first, so each
// parent sums already-repaired children) and then root itself.
func (t *Tracker) RecalculateSubtree(ctx context.Context, root *model.Category) error {
	descendants, err := t.queries.ListDescendants(ctx, root.Path)
	if err != nil {
		return fmt.Errorf("recalculate subtree: %w", err)
	}
	// ListDescendants orders ancestors first; walk the batch in reverse.
	for i := len(descendants) - 1; i >= 0; i-- {
		if _, err := t.Recalculate(ctx, descendants[i].ID); err != nil {
			return err
		}
	}
	_, err = t.Recalculate(ctx, root.ID)
	return err
}

func (t *Tracker) adjust(ctx context.Context, id string, contentDelta, subcategoryDelta, totalDelta int64) error {
	if err := t.queries.AdjustCounters(ctx, id, contentDelta, subcategoryDelta, totalDelta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &taxonomy.NotFoundError{Kind: "category", ID: id}
		}
		return fmt.Errorf("adjust counters: %w", err)
	}
	return nil
}
