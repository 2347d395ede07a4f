// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the category hierarchy façade: it validates
// input, sequences the hierarchy engine, the statistics tracker and the
// deletion orchestrator inside a single unit of work, and returns
// domain-level results.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/otax-go/internal/cache"
	"github.com/olegiv/otax-go/internal/hierarchy"
	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/stats"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
	"github.com/olegiv/otax-go/internal/util"
)

// Search pagination bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Options configures a CategoryService.
type Options struct {
	MaxDepth        int    // maximum hierarchy depth (default 10)
	DefaultLanguage string // primary language for path segments and ordering
	TreeCache       *cache.TreeCache
}

// CategoryService is the façade over the category hierarchy engine.
type CategoryService struct {
	db          *sql.DB
	queries     *store.Queries
	logger      *slog.Logger
	maxDepth    int
	defaultLang string
	treeCache   *cache.TreeCache
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(db *sql.DB, logger *slog.Logger, opts Options) *CategoryService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = hierarchy.DefaultMaxDepth
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &CategoryService{
		db:          db,
		queries:     store.New(db),
		logger:      logger,
		maxDepth:    opts.MaxDepth,
		defaultLang: opts.DefaultLanguage,
		treeCache:   opts.TreeCache,
	}
}

// CreateCategoryInput carries the fields for Create.
type CreateCategoryInput struct {
	CategoryType   string
	Name           model.MultilingualText
	Description    model.MultilingualText
	Slug           model.MultilingualText
	SEOTitle       model.MultilingualText
	SEODescription model.MultilingualText
	ParentID       *string
	SortOrder      int
	Visibility     string
	ColorScheme    string
}

// UpdateCategoryInput carries a partial update. Nil pointers leave fields
// untouched. Setting ParentID or MoveToRoot re-parents the node and cascades
// paths and counters. ExpectedVersion, when set, enables optimistic locking
// against state the caller read earlier.
type UpdateCategoryInput struct {
	Name            *model.MultilingualText
	Description     *model.MultilingualText
	Slug            *model.MultilingualText
	SEOTitle        *model.MultilingualText
	SEODescription  *model.MultilingualText
	ParentID        *string
	MoveToRoot      bool
	SortOrder       *int
	Visibility      *string
	ColorScheme     *string
	ExpectedVersion *int64
}

// Get returns a single category by id.
func (s *CategoryService) Get(ctx context.Context, id string) (*model.Category, error) {
	c, err := s.queries.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &taxonomy.NotFoundError{Kind: "category", ID: id}
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// Create validates the input, computes path and level, checks slug
// uniqueness, persists the node and updates the parent's counters, all
// inside one unit of work.
func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (*model.Category, error) {
	if err := s.validateCreate(&in); err != nil {
		return nil, err
	}

	var created *model.Category
	err := s.withTx(ctx, func(q *store.Queries) error {
		engine := hierarchy.New(q, s.maxDepth, s.defaultLang)
		tracker := stats.New(q)

		var parent *model.Category
		if in.ParentID != nil {
			p, err := q.GetCategoryByID(ctx, *in.ParentID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return &taxonomy.NotFoundError{Kind: "parent", ID: *in.ParentID}
				}
				return fmt.Errorf("load parent: %w", err)
			}
			if !p.IsActive {
				return &taxonomy.ValidationError{Field: "parent_id", Message: "parent category is not active"}
			}
			parent = &p
		}

		path, level, err := engine.ComputePath(parent, in.Slug, in.Name)
		if err != nil {
			return err
		}
		if err := engine.CheckSlugUnique(ctx, in.ParentID, in.Slug, ""); err != nil {
			return err
		}
		if err := s.ensurePathFree(ctx, q, path, in.ParentID); err != nil {
			return err
		}

		now := time.Now()
		c := &model.Category{
			ID:             uuid.NewString(),
			CategoryType:   in.CategoryType,
			Name:           in.Name,
			Description:    in.Description,
			Slug:           in.Slug,
			SEOTitle:       in.SEOTitle,
			SEODescription: in.SEODescription,
			ParentID:       in.ParentID,
			Level:          level,
			Path:           path,
			SortOrder:      in.SortOrder,
			IsActive:       true,
			Visibility:     in.Visibility,
			ColorScheme:    in.ColorScheme,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := q.CreateCategory(ctx, c); err != nil {
			return err
		}
		if parent != nil {
			if err := tracker.OnChildAdded(ctx, parent.ID); err != nil {
				return err
			}
		}
		if err := appendEvent(ctx, q, model.EventCategoryCreated, c.ID, eventPayload{
			Path: c.Path, CategoryType: c.CategoryType, ParentID: c.ParentID,
		}); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category created", "category_id", created.ID, "path", created.Path, "type", created.CategoryType)
	return created, nil
}

// Update applies a partial update. A parent change is treated as a move and
// cascades path and level to the whole subtree; a name or slug change
// triggers a path rebuild even without a parent change.
func (s *CategoryService) Update(ctx context.Context, id string, in UpdateCategoryInput) (*model.Category, error) {
	if in.ParentID != nil && in.MoveToRoot {
		return nil, &taxonomy.ValidationError{Field: "parent_id", Message: "cannot both set a parent and move to root"}
	}

	var updated *model.Category
	err := s.withTx(ctx, func(q *store.Queries) error {
		engine := hierarchy.New(q, s.maxDepth, s.defaultLang)
		tracker := stats.New(q)

		node, err := q.GetCategoryByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &taxonomy.NotFoundError{Kind: "category", ID: id}
			}
			return fmt.Errorf("load category: %w", err)
		}
		if !node.IsActive {
			return &taxonomy.InvalidOperationError{Message: "category is deleted"}
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != node.Version {
			return &taxonomy.ConcurrentModificationError{ID: id, ExpectedVersion: *in.ExpectedVersion}
		}

		oldPath, oldLevel, oldParentID := node.Path, node.Level, node.ParentID
		loadedVersion := node.Version

		if err := applyPatch(&node, in); err != nil {
			return err
		}

		moving := in.MoveToRoot || (in.ParentID != nil && !sameParent(oldParentID, in.ParentID))

		var newParent *model.Category
		if moving {
			if in.ParentID != nil {
				if would, err := engine.WouldCreateCycle(ctx, node.ID, *in.ParentID); err != nil {
					return err
				} else if would {
					return &taxonomy.CycleError{NodeID: node.ID, ParentID: *in.ParentID}
				}
				p, err := q.GetCategoryByID(ctx, *in.ParentID)
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return &taxonomy.NotFoundError{Kind: "parent", ID: *in.ParentID}
					}
					return fmt.Errorf("load new parent: %w", err)
				}
				if !p.IsActive {
					return &taxonomy.ValidationError{Field: "parent_id", Message: "parent category is not active"}
				}
				newParent = &p
			}
			node.ParentID = in.ParentID
			if in.MoveToRoot {
				node.ParentID = nil
			}
		} else if node.ParentID != nil {
			p, err := q.GetCategoryByID(ctx, *node.ParentID)
			if err != nil {
				return fmt.Errorf("load parent: %w", err)
			}
			newParent = &p
		}

		newPath, newLevel, err := engine.ComputePath(newParent, node.Slug, node.Name)
		if err != nil {
			return err
		}

		pathChanged := newPath != oldPath || newLevel != oldLevel
		if pathChanged || in.Slug != nil || in.Name != nil {
			if err := engine.CheckSlugUnique(ctx, node.ParentID, node.Slug, node.ID); err != nil {
				return err
			}
		}
		if newPath != oldPath {
			if err := s.ensurePathFree(ctx, q, newPath, node.ParentID); err != nil {
				return err
			}
		}

		node.Path, node.Level = newPath, newLevel

		if err := q.UpdateCategory(ctx, &node, loadedVersion); err != nil {
			return mapStoreErr(err, node.ID, loadedVersion)
		}

		if pathChanged {
			rewrites, err := engine.RebuildDescendantPaths(ctx, oldPath, newPath, newLevel-oldLevel)
			if err != nil {
				return err
			}
			for _, rw := range rewrites {
				if err := q.UpdatePathLevel(ctx, rw.ID, rw.NewPath, rw.NewLevel, rw.ExpectedVersion); err != nil {
					return mapStoreErr(err, rw.ID, rw.ExpectedVersion)
				}
			}
		}

		if moving {
			// Transfer counters between the old and the new ancestor chain.
			if oldParentID != nil {
				if err := tracker.OnChildRemoved(ctx, *oldParentID); err != nil {
					return err
				}
				old := model.Category{ID: node.ID, ParentID: oldParentID}
				if err := tracker.ApplyTotalDeltaToAncestors(ctx, &old, -node.TotalContentCount); err != nil {
					return err
				}
			}
			if node.ParentID != nil {
				if err := tracker.OnChildAdded(ctx, *node.ParentID); err != nil {
					return err
				}
				if err := tracker.ApplyTotalDeltaToAncestors(ctx, &node, node.TotalContentCount); err != nil {
					return err
				}
			}
		}

		eventType := model.EventCategoryUpdated
		if moving {
			eventType = model.EventCategoryMoved
		}
		if err := appendEvent(ctx, q, eventType, node.ID, eventPayload{
			Path: node.Path, OldPath: oldPath, CategoryType: node.CategoryType, ParentID: node.ParentID,
		}); err != nil {
			return err
		}

		updated = &node
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category updated", "category_id", updated.ID, "path", updated.Path)
	return updated, nil
}

// ApplyContentDelta is the boundary the external content domain reports
// assignments through: it adjusts content_count on the node and
// total_content_count on the node and all its ancestors.
func (s *CategoryService) ApplyContentDelta(ctx context.Context, id string, delta int64) (*model.Category, error) {
	var out *model.Category
	err := s.withTx(ctx, func(q *store.Queries) error {
		tracker := stats.New(q)
		if err := tracker.ApplyContentDelta(ctx, id, delta); err != nil {
			return err
		}
		node, err := q.GetCategoryByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reload category: %w", err)
		}
		if err := appendEvent(ctx, q, model.EventCategoryUpdated, id, eventPayload{
			Path: node.Path, ContentDelta: delta,
		}); err != nil {
			return err
		}
		out = &node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Recalculate repairs the counters of a node and its whole subtree from
// ground truth. It is idempotent and intended for repair tooling, not the
// hot path.
func (s *CategoryService) Recalculate(ctx context.Context, id string) (*model.Category, error) {
	var out *model.Category
	err := s.withTx(ctx, func(q *store.Queries) error {
		tracker := stats.New(q)
		node, err := q.GetCategoryByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &taxonomy.NotFoundError{Kind: "category", ID: id}
			}
			return fmt.Errorf("load category: %w", err)
		}
		if err := tracker.RecalculateSubtree(ctx, &node); err != nil {
			return err
		}
		repaired, err := q.GetCategoryByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reload category: %w", err)
		}
		if err := appendEvent(ctx, q, model.EventCategoryRecalculated, id, eventPayload{Path: repaired.Path}); err != nil {
			return err
		}
		out = &repaired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTree returns the category tree under rootID (all roots when nil) down
// to maxDepth levels, ordered by sort_order then primary-language name.
func (s *CategoryService) GetTree(ctx context.Context, rootID *string, maxDepth int, includeInactive bool) ([]*model.TreeNode, error) {
	if maxDepth < 1 || maxDepth > s.maxDepth {
		return nil, &taxonomy.ValidationError{
			Field:   "max_depth",
			Message: fmt.Sprintf("max_depth must be between 1 and %d", s.maxDepth),
		}
	}

	cacheKey := treeCacheKey(rootID, maxDepth, includeInactive)
	if s.treeCache != nil {
		if nodes, ok := s.treeCache.Get(ctx, cacheKey); ok {
			return nodes, nil
		}
	}

	var tops []model.Category
	if rootID != nil {
		root, err := s.queries.GetCategoryByID(ctx, *rootID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &taxonomy.NotFoundError{Kind: "category", ID: *rootID}
			}
			return nil, fmt.Errorf("load root: %w", err)
		}
		if !root.IsActive && !includeInactive {
			return nil, &taxonomy.NotFoundError{Kind: "category", ID: *rootID}
		}
		tops = []model.Category{root}
	} else {
		roots, err := s.queries.ListChildren(ctx, nil, includeInactive)
		if err != nil {
			return nil, err
		}
		tops = roots
	}

	nodes, err := s.buildTree(ctx, tops, maxDepth, includeInactive)
	if err != nil {
		return nil, err
	}

	if s.treeCache != nil {
		s.treeCache.Set(ctx, cacheKey, nodes)
	}
	return nodes, nil
}

// buildTree runs a bounded breadth-first traversal over the children lists.
func (s *CategoryService) buildTree(ctx context.Context, tops []model.Category, maxDepth int, includeInactive bool) ([]*model.TreeNode, error) {
	result := make([]*model.TreeNode, 0, len(tops))
	type frame struct {
		node  *model.TreeNode
		depth int
	}
	var queue []frame
	for _, c := range tops {
		n := &model.TreeNode{Category: c}
		result = append(result, n)
		queue = append(queue, frame{node: n, depth: 1})
	}
	s.sortSiblings(result)

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if f.depth >= maxDepth {
			continue
		}
		children, err := s.queries.ListChildren(ctx, &f.node.ID, includeInactive)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			child := &model.TreeNode{Category: c}
			f.node.Children = append(f.node.Children, child)
			queue = append(queue, frame{node: child, depth: f.depth + 1})
		}
		s.sortSiblings(f.node.Children)
	}
	return result, nil
}

func (s *CategoryService) sortSiblings(nodes []*model.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Name.Resolve(s.defaultLang) < nodes[j].Name.Resolve(s.defaultLang)
	})
}

// SearchInput filters and paginates Search.
type SearchInput struct {
	Query           string
	Language        string
	CategoryType    string
	ParentID        *string
	FilterParent    bool
	IncludeInactive bool
	Page            int
	Limit           int
}

// Search runs a filtered, paginated category search.
func (s *CategoryService) Search(ctx context.Context, in SearchInput) ([]model.Category, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = DefaultSearchLimit
	}
	if in.Limit > MaxSearchLimit {
		return nil, 0, &taxonomy.ValidationError{
			Field: "limit", Message: fmt.Sprintf("limit must not exceed %d", MaxSearchLimit),
		}
	}
	if in.Language != "" && !util.IsValidLangCode(in.Language) {
		return nil, 0, &taxonomy.ValidationError{Field: "language", Message: "invalid language code"}
	}
	if in.CategoryType != "" && !model.IsValidCategoryType(in.CategoryType) {
		return nil, 0, &taxonomy.ValidationError{Field: "type", Message: "unknown category type"}
	}

	items, total, err := s.queries.SearchCategories(ctx, store.SearchCategoriesParams{
		Query:           in.Query,
		Language:        in.Language,
		CategoryType:    in.CategoryType,
		ParentID:        in.ParentID,
		FilterParent:    in.FilterParent,
		IncludeInactive: in.IncludeInactive,
		Limit:           int64(in.Limit),
		Offset:          int64((in.Page - 1) * in.Limit),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search categories: %w", err)
	}
	return items, total, nil
}

// validateCreate checks the request fields and derives missing slugs.
func (s *CategoryService) validateCreate(in *CreateCategoryInput) error {
	if !model.IsValidCategoryType(in.CategoryType) {
		return &taxonomy.ValidationError{Field: "category_type", Message: "unknown category type"}
	}
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPublic
	}
	if !model.IsValidVisibility(in.Visibility) {
		return &taxonomy.ValidationError{Field: "visibility", Message: "unknown visibility"}
	}
	if in.SortOrder < 0 {
		return &taxonomy.ValidationError{Field: "sort_order", Message: "sort_order must not be negative"}
	}
	if in.ColorScheme != "" {
		if !util.IsValidColorScheme(in.ColorScheme) {
			return &taxonomy.ValidationError{Field: "color_scheme", Message: "color must be a 6-hex-digit string"}
		}
		in.ColorScheme = util.NormalizeColorScheme(in.ColorScheme)
	}
	if err := in.Name.Validate("name", true); err != nil {
		return err
	}
	for field, text := range map[string]model.MultilingualText{
		"description": in.Description, "seo_title": in.SEOTitle, "seo_description": in.SEODescription,
	} {
		if err := text.Validate(field, false); err != nil {
			return err
		}
	}
	if in.Slug.IsZero() {
		in.Slug = deriveSlugs(in.Name)
	}
	if err := in.Slug.Validate("slug", true); err != nil {
		return err
	}
	for _, lang := range in.Slug.Languages() {
		value, _ := in.Slug.Get(lang)
		if !util.IsValidSlug(value) {
			return &taxonomy.ValidationError{Field: "slug", Message: fmt.Sprintf("invalid slug %q for language %q", value, lang)}
		}
	}
	return nil
}

// applyPatch copies the patch fields onto the node, validating each.
func applyPatch(node *model.Category, in UpdateCategoryInput) error {
	if in.Name != nil {
		if err := in.Name.Validate("name", true); err != nil {
			return err
		}
		node.Name = *in.Name
	}
	if in.Description != nil {
		if err := in.Description.Validate("description", false); err != nil {
			return err
		}
		node.Description = *in.Description
	}
	if in.Slug != nil {
		if err := in.Slug.Validate("slug", true); err != nil {
			return err
		}
		for _, lang := range in.Slug.Languages() {
			value, _ := in.Slug.Get(lang)
			if !util.IsValidSlug(value) {
				return &taxonomy.ValidationError{Field: "slug", Message: fmt.Sprintf("invalid slug %q for language %q", value, lang)}
			}
		}
		node.Slug = *in.Slug
	}
	if in.SEOTitle != nil {
		if err := in.SEOTitle.Validate("seo_title", false); err != nil {
			return err
		}
		node.SEOTitle = *in.SEOTitle
	}
	if in.SEODescription != nil {
		if err := in.SEODescription.Validate("seo_description", false); err != nil {
			return err
		}
		node.SEODescription = *in.SEODescription
	}
	if in.SortOrder != nil {
		if *in.SortOrder < 0 {
			return &taxonomy.ValidationError{Field: "sort_order", Message: "sort_order must not be negative"}
		}
		node.SortOrder = *in.SortOrder
	}
	if in.Visibility != nil {
		if !model.IsValidVisibility(*in.Visibility) {
			return &taxonomy.ValidationError{Field: "visibility", Message: "unknown visibility"}
		}
		node.Visibility = *in.Visibility
	}
	if in.ColorScheme != nil {
		if *in.ColorScheme != "" && !util.IsValidColorScheme(*in.ColorScheme) {
			return &taxonomy.ValidationError{Field: "color_scheme", Message: "color must be a 6-hex-digit string"}
		}
		node.ColorScheme = util.NormalizeColorScheme(*in.ColorScheme)
	}
	return nil
}

// ensurePathFree rejects a path already held by any row, active or not.
// Soft-deleted rows keep their paths reserved for audit consistency.
func (s *CategoryService) ensurePathFree(ctx context.Context, q *store.Queries, path string, parentID *string) error {
	exists, err := q.CategoryPathExists(ctx, path)
	if err != nil {
		return fmt.Errorf("check path: %w", err)
	}
	if exists {
		scope := ""
		if parentID != nil {
			scope = *parentID
		}
		return &taxonomy.DuplicateSlugError{ParentID: scope, Language: s.defaultLang, Slug: util.LastSegment(path)}
	}
	return nil
}

// deriveSlugs slugifies every language entry of the name.
func deriveSlugs(name model.MultilingualText) model.MultilingualText {
	var slug model.MultilingualText
	for _, lang := range name.Languages() {
		value, _ := name.Get(lang)
		if s := util.Slugify(value); s != "" {
			slug.Set(lang, s)
		}
	}
	return slug
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// withTx runs fn inside a transaction; any error rolls the whole unit of
// work back, leaving the tree exactly as it was.
func (s *CategoryService) withTx(ctx context.Context, fn func(q *store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mapStoreErr converts store-level guard failures to domain error kinds.
func mapStoreErr(err error, id string, expected int64) error {
	switch {
	case errors.Is(err, store.ErrVersionMismatch):
		return &taxonomy.ConcurrentModificationError{ID: id, ExpectedVersion: expected}
	case errors.Is(err, sql.ErrNoRows):
		return &taxonomy.NotFoundError{Kind: "category", ID: id}
	default:
		return err
	}
}

// eventPayload is the JSON body appended to the outbox for category events.
type eventPayload struct {
	Path         string  `json:"path,omitempty"`
	OldPath      string  `json:"old_path,omitempty"`
	CategoryType string  `json:"category_type,omitempty"`
	ParentID     *string `json:"parent_id,omitempty"`
	ContentDelta int64   `json:"content_delta,omitempty"`
}

func appendEvent(ctx context.Context, q *store.Queries, eventType, categoryID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := q.CreateCategoryEvent(ctx, eventType, categoryID, string(b), time.Now()); err != nil {
		return err
	}
	return nil
}

func treeCacheKey(rootID *string, maxDepth int, includeInactive bool) string {
	root := "all"
	if rootID != nil {
		root = *rootID
	}
	return fmt.Sprintf("tree:%s:%d:%t", root, maxDepth, includeInactive)
}
