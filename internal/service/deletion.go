// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/otax-go/internal/hierarchy"
	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/stats"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
	"github.com/olegiv/otax-go/internal/util"
)

// Delete soft-deletes a category after dispositioning its content and
// subcategories according to policy. The whole orchestration runs in one
// unit of work: any failure leaves the tree untouched. The returned report
// lists every disposition performed.
func (s *CategoryService) Delete(ctx context.Context, id string, policy model.DeletionPolicy) (*model.DeletionReport, error) {
	var report *model.DeletionReport
	err := s.withTx(ctx, func(q *store.Queries) error {
		orch := &deletionOrchestrator{
			queries: q,
			engine:  hierarchy.New(q, s.maxDepth, s.defaultLang),
			tracker: stats.New(q),
		}
		r, err := orch.run(ctx, id, policy)
		if err != nil {
			return err
		}
		if err := appendEvent(ctx, q, model.EventCategoryDeleted, id, r); err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category deleted",
		"category_id", id,
		"nodes_deleted", report.NodesDeleted,
		"content_archived", report.ContentArchived,
		"content_moved", report.ContentMoved)
	return report, nil
}

// deletionOrchestrator sequences a single deletion: validate the policy
// up front, disposition content, disposition children, then soft-delete
// bottom-up.
type deletionOrchestrator struct {
	queries *store.Queries
	engine  *hierarchy.Engine
	tracker *stats.Tracker
}

func (o *deletionOrchestrator) run(ctx context.Context, id string, policy model.DeletionPolicy) (*model.DeletionReport, error) {
	node, err := o.queries.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &taxonomy.NotFoundError{Kind: "category", ID: id}
		}
		return nil, fmt.Errorf("load category: %w", err)
	}
	if !node.IsActive {
		return nil, &taxonomy.InvalidOperationError{Message: "category is already deleted"}
	}

	target, err := o.validatePolicy(ctx, &node, &policy)
	if err != nil {
		return nil, err
	}

	report := &model.DeletionReport{CategoryID: node.ID}

	if err := o.disposeContent(ctx, &node, policy.ContentAction, target, report); err != nil {
		return nil, err
	}

	switch policy.SubcategoryAction {
	case model.SubcategoryActionMoveToParent:
		if err := o.moveChildrenTo(ctx, &node, node.ParentID, report); err != nil {
			return nil, err
		}
	case model.SubcategoryActionMoveToCategory:
		if err := o.moveChildrenTo(ctx, &node, policy.TargetCategoryID, report); err != nil {
			return nil, err
		}
	case model.SubcategoryActionDelete:
		if err := o.deleteSubtree(ctx, &node, policy.ContentAction, target, report); err != nil {
			return nil, err
		}
	}

	if err := o.softDelete(ctx, node.ID); err != nil {
		return nil, err
	}
	report.NodesDeleted++
	if node.ParentID != nil {
		if err := o.tracker.OnChildRemoved(ctx, *node.ParentID); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// validatePolicy checks the policy against the node's actual state and
// resolves the move target. Empty actions default to archive/delete when
// ForceDelete is set and fail otherwise.
func (o *deletionOrchestrator) validatePolicy(ctx context.Context, node *model.Category, policy *model.DeletionPolicy) (*model.Category, error) {
	if node.ContentCount > 0 && policy.ContentAction == "" {
		if !policy.ForceDelete {
			return nil, &taxonomy.ValidationError{Field: "content_action", Message: "category has content; content_action is required"}
		}
		policy.ContentAction = model.ContentActionArchive
	}
	if node.SubcategoryCount > 0 && policy.SubcategoryAction == "" {
		if !policy.ForceDelete {
			return nil, &taxonomy.ValidationError{Field: "subcategory_action", Message: "category has subcategories; subcategory_action is required"}
		}
		policy.SubcategoryAction = model.SubcategoryActionDelete
	}

	switch policy.ContentAction {
	case "", model.ContentActionArchive:
	case model.ContentActionMoveToParent:
		if node.ParentID == nil {
			return nil, &taxonomy.ValidationError{Field: "content_action", Message: "cannot move content to parent: category is a root"}
		}
	case model.ContentActionMoveToCategory:
		if policy.TargetCategoryID == nil {
			return nil, &taxonomy.ValidationError{Field: "target_category_id", Message: "target_category_id is required for move_to_category"}
		}
	default:
		return nil, &taxonomy.ValidationError{Field: "content_action", Message: "unknown content action"}
	}

	switch policy.SubcategoryAction {
	case "", model.SubcategoryActionDelete:
	case model.SubcategoryActionMoveToParent:
		if node.ParentID == nil {
			return nil, &taxonomy.ValidationError{Field: "subcategory_action", Message: "cannot move subcategories to parent: category is a root"}
		}
	case model.SubcategoryActionMoveToCategory:
		if policy.TargetCategoryID == nil {
			return nil, &taxonomy.ValidationError{Field: "target_category_id", Message: "target_category_id is required for move_to_category"}
		}
	default:
		return nil, &taxonomy.ValidationError{Field: "subcategory_action", Message: "unknown subcategory action"}
	}

	var target *model.Category
	if policy.TargetCategoryID != nil {
		t, err := o.queries.GetCategoryByID(ctx, *policy.TargetCategoryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &taxonomy.NotFoundError{Kind: "target", ID: *policy.TargetCategoryID}
			}
			return nil, fmt.Errorf("load target: %w", err)
		}
		if !t.IsActive {
			return nil, &taxonomy.ValidationError{Field: "target_category_id", Message: "target category is not active"}
		}
		if t.ID == node.ID {
			return nil, &taxonomy.InvalidOperationError{Message: "target category cannot be the category being deleted"}
		}
		inSubtree := util.IsDescendantPath(node.Path, t.Path)
		if policy.SubcategoryAction == model.SubcategoryActionMoveToCategory && inSubtree {
			return nil, &taxonomy.InvalidOperationError{Message: "target category lies inside the subtree being re-parented"}
		}
		// A target inside the subtree would itself be deleted.
		if policy.SubcategoryAction != model.SubcategoryActionMoveToParent && policy.SubcategoryAction != model.SubcategoryActionMoveToCategory && inSubtree {
			return nil, &taxonomy.InvalidOperationError{Message: "target category lies inside the subtree being deleted"}
		}
		target = &t
	}
	return target, nil
}

// disposeContent moves or archives the node's directly assigned content
// and withdraws it from the node's counter chain.
func (o *deletionOrchestrator) disposeContent(ctx context.Context, node *model.Category, action string, target *model.Category, report *model.DeletionReport) error {
	if node.ContentCount == 0 {
		return nil
	}
	count := node.ContentCount

	disp := model.DeletionDisposition{
		CategoryID:    node.ID,
		Path:          node.Path,
		ContentAction: action,
	}

	switch action {
	case model.ContentActionArchive:
		if err := o.withdrawContent(ctx, node, count); err != nil {
			return err
		}
		disp.ContentArchived = count
		report.ContentArchived += count
	case model.ContentActionMoveToParent:
		if err := o.withdrawContent(ctx, node, count); err != nil {
			return err
		}
		if err := o.tracker.ApplyContentDelta(ctx, *node.ParentID, count); err != nil {
			return err
		}
		disp.ContentMoved = count
		disp.MovedTo = *node.ParentID
		report.ContentMoved += count
	case model.ContentActionMoveToCategory:
		if err := o.withdrawContent(ctx, node, count); err != nil {
			return err
		}
		if err := o.tracker.ApplyContentDelta(ctx, target.ID, count); err != nil {
			return err
		}
		disp.ContentMoved = count
		disp.MovedTo = target.ID
		report.ContentMoved += count
	default:
		return &taxonomy.ValidationError{Field: "content_action", Message: "unknown content action"}
	}

	report.Dispositions = append(report.Dispositions, disp)
	return nil
}

// withdrawContent removes count items from the node and its ancestor totals.
func (o *deletionOrchestrator) withdrawContent(ctx context.Context, node *model.Category, count int64) error {
	if err := o.queries.AdjustCounters(ctx, node.ID, -count, 0, -count); err != nil {
		return err
	}
	return o.tracker.ApplyTotalDeltaToAncestors(ctx, node, -count)
}

// moveChildrenTo re-parents every active child of node under dest (root
// when nil), rebuilding paths and transferring counters.
func (o *deletionOrchestrator) moveChildrenTo(ctx context.Context, node *model.Category, destID *string, report *model.DeletionReport) error {
	children, err := o.queries.ListChildren(ctx, &node.ID, false)
	if err != nil {
		return err
	}

	var dest *model.Category
	if destID != nil {
		d, err := o.queries.GetCategoryByID(ctx, *destID)
		if err != nil {
			return fmt.Errorf("load destination: %w", err)
		}
		dest = &d
	}

	for i := range children {
		child := children[i]
		if err := o.reparentChild(ctx, &child, dest, report); err != nil {
			return err
		}
	}
	return nil
}

// reparentChild moves one child subtree under dest.
func (o *deletionOrchestrator) reparentChild(ctx context.Context, child *model.Category, dest *model.Category, report *model.DeletionReport) error {
	var destID *string
	if dest != nil {
		destID = &dest.ID
		if would, err := o.engine.WouldCreateCycle(ctx, child.ID, dest.ID); err != nil {
			return err
		} else if would {
			return &taxonomy.CycleError{NodeID: child.ID, ParentID: dest.ID}
		}
	}

	if err := o.engine.CheckSlugUnique(ctx, destID, child.Slug, child.ID); err != nil {
		return err
	}

	oldPath, oldLevel, oldParentID := child.Path, child.Level, child.ParentID
	newPath, newLevel, err := o.engine.ComputePath(dest, child.Slug, child.Name)
	if err != nil {
		return err
	}
	exists, err := o.queries.CategoryPathExists(ctx, newPath)
	if err != nil {
		return err
	}
	if exists {
		scope := ""
		if destID != nil {
			scope = *destID
		}
		return &taxonomy.DuplicateSlugError{ParentID: scope, Language: "", Slug: child.Segment()}
	}

	child.ParentID = destID
	if err := o.queries.UpdatePathLevel(ctx, child.ID, newPath, newLevel, child.Version); err != nil {
		return mapStoreErr(err, child.ID, child.Version)
	}
	if err := o.queries.SetParent(ctx, child.ID, destID); err != nil {
		return err
	}

	rewrites, err := o.engine.RebuildDescendantPaths(ctx, oldPath, newPath, newLevel-oldLevel)
	if err != nil {
		return err
	}
	for _, rw := range rewrites {
		if err := o.queries.UpdatePathLevel(ctx, rw.ID, rw.NewPath, rw.NewLevel, rw.ExpectedVersion); err != nil {
			return mapStoreErr(err, rw.ID, rw.ExpectedVersion)
		}
	}

	// Counter transfer: out of the old chain, into the new one. The old
	// parent is about to be deleted but its row stays consistent until then.
	if oldParentID != nil {
		if err := o.tracker.OnChildRemoved(ctx, *oldParentID); err != nil {
			return err
		}
		old := model.Category{ID: child.ID, ParentID: oldParentID}
		if err := o.tracker.ApplyTotalDeltaToAncestors(ctx, &old, -child.TotalContentCount); err != nil {
			return err
		}
	}
	if destID != nil {
		if err := o.tracker.OnChildAdded(ctx, *destID); err != nil {
			return err
		}
		if err := o.tracker.ApplyTotalDeltaToAncestors(ctx, child, child.TotalContentCount); err != nil {
			return err
		}
	}

	report.Dispositions = append(report.Dispositions, model.DeletionDisposition{
		CategoryID:        child.ID,
		Path:              oldPath,
		SubcategoryAction: "moved",
		MovedTo:           derefOr(destID, ""),
	})
	return nil
}

// deleteSubtree soft-deletes every active descendant, deepest first. Content
// on descendants follows the root policy, except that move_to_parent is
// coerced to archive: the parent chain is being deleted with them.
func (o *deletionOrchestrator) deleteSubtree(ctx context.Context, root *model.Category, contentAction string, target *model.Category, report *model.DeletionReport) error {
	descendants, err := o.queries.ListDescendants(ctx, root.Path)
	if err != nil {
		return err
	}

	// ListDescendants orders shallowest first; walk it backwards so every
	// node is removed before its parent.
	for i := len(descendants) - 1; i >= 0; i-- {
		n := descendants[i]
		if !n.IsActive {
			continue
		}
		if n.ContentCount > 0 {
			action := model.ContentActionArchive
			var moveTarget *model.Category
			if contentAction == model.ContentActionMoveToCategory &&
				target != nil && !util.IsDescendantPath(root.Path, target.Path) {
				action = model.ContentActionMoveToCategory
				moveTarget = target
			}
			if err := o.disposeContent(ctx, &n, action, moveTarget, report); err != nil {
				return err
			}
		}
		if err := o.softDelete(ctx, n.ID); err != nil {
			return err
		}
		report.NodesDeleted++
		if n.ParentID != nil {
			if err := o.tracker.OnChildRemoved(ctx, *n.ParentID); err != nil {
				return err
			}
		}
		report.Dispositions = append(report.Dispositions, model.DeletionDisposition{
			CategoryID:        n.ID,
			Path:              n.Path,
			SubcategoryAction: model.SubcategoryActionDelete,
		})
	}
	return nil
}

// softDelete re-reads the row for its current version before flipping
// is_active: counter adjustments earlier in the transaction bump versions.
func (o *deletionOrchestrator) softDelete(ctx context.Context, id string) error {
	n, err := o.queries.GetCategoryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reload before delete: %w", err)
	}
	if err := o.queries.SetActive(ctx, id, false, n.Version); err != nil {
		return mapStoreErr(err, id, n.Version)
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
