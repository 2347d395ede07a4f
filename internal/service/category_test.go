// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/otax-go/internal/cache"
	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/service"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
	"github.com/olegiv/otax-go/internal/testutil"
)

func newTestService(t *testing.T) (*service.CategoryService, *store.Queries) {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	svc := service.NewCategoryService(db, testutil.TestLogger(), service.Options{
		MaxDepth:        10,
		DefaultLanguage: "en",
	})
	return svc, store.New(db)
}

func mustCreate(t *testing.T, svc *service.CategoryService, name string, parentID *string) *model.Category {
	t.Helper()

	c, err := svc.Create(context.Background(), service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", name),
		ParentID:     parentID,
	})
	require.NoError(t, err, "create %s", name)
	return c
}

func TestCreateRootAndChild(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	assert.Equal(t, "/sciences", sciences.Path)
	assert.Equal(t, 0, sciences.Level)
	assert.Nil(t, sciences.ParentID)
	assert.True(t, sciences.IsActive)
	assert.Equal(t, int64(1), sciences.Version)
	assert.Equal(t, model.VisibilityPublic, sciences.Visibility)

	physics := mustCreate(t, svc, "Physics", &sciences.ID)
	assert.Equal(t, "/sciences/physics", physics.Path)
	assert.Equal(t, 1, physics.Level)
	require.NotNil(t, physics.ParentID)
	assert.Equal(t, sciences.ID, *physics.ParentID)

	parent, err := svc.Get(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), parent.SubcategoryCount)
	assert.Equal(t, int64(0), parent.TotalContentCount)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var verr *taxonomy.ValidationError

	_, err := svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: "bogus",
		Name:         model.NewMultilingualText("en", "X"),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category_type", verr.Field)

	_, err = svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "X"),
		SortOrder:    -1,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sort_order", verr.Field)

	// Unknown parent.
	missing := "no-such-id"
	var nf *taxonomy.NotFoundError
	_, err = svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "X"),
		ParentID:     &missing,
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "parent", nf.Kind)
}

func TestCreateDerivesSlugPerLanguage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "Sciences", "cs", "Vědy a Technika"),
	})
	require.NoError(t, err)

	en, _ := c.Slug.Get("en")
	cs, _ := c.Slug.Get("cs")
	assert.Equal(t, "sciences", en)
	assert.Equal(t, "vedy-a-technika", cs)
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root := mustCreate(t, svc, "Sciences", nil)
	mustCreate(t, svc, "Physics", &root.ID)

	var dup *taxonomy.DuplicateSlugError
	_, err := svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "Physics"),
		ParentID:     &root.ID,
	})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "physics", dup.Slug)

	// Same slug under a different parent is fine.
	other := mustCreate(t, svc, "Arts", nil)
	_, err = svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "Physics"),
		ParentID:     &other.ID,
	})
	require.NoError(t, err)
}

func TestCreateDepthLimit(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := service.NewCategoryService(db, testutil.TestLogger(), service.Options{
		MaxDepth:        2,
		DefaultLanguage: "en",
	})
	ctx := context.Background()

	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)

	var verr *taxonomy.ValidationError
	_, err := svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "C"),
		ParentID:     &b.ID,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent_id", verr.Field)
}

func TestApplyContentDeltaPropagation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)

	got, err := svc.ApplyContentDelta(ctx, physics.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ContentCount)
	assert.Equal(t, int64(3), got.TotalContentCount)

	root, err := svc.Get(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), root.ContentCount)
	assert.Equal(t, int64(3), root.TotalContentCount)

	var verr *taxonomy.ValidationError
	_, err = svc.ApplyContentDelta(ctx, physics.ID, -5)
	require.ErrorAs(t, err, &verr)

	// The failed delta rolled back entirely.
	root, err = svc.Get(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), root.TotalContentCount)
}

func TestMoveToRootCascades(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)
	quantum := mustCreate(t, svc, "Quantum", &physics.ID)

	_, err := svc.ApplyContentDelta(ctx, quantum.ID, 2)
	require.NoError(t, err)
	_, err = svc.ApplyContentDelta(ctx, physics.ID, 1)
	require.NoError(t, err)

	moved, err := svc.Update(ctx, physics.ID, service.UpdateCategoryInput{MoveToRoot: true})
	require.NoError(t, err)
	assert.Equal(t, "/physics", moved.Path)
	assert.Equal(t, 0, moved.Level)
	assert.Nil(t, moved.ParentID)

	// The whole subtree followed.
	sub, err := svc.Get(ctx, quantum.ID)
	require.NoError(t, err)
	assert.Equal(t, "/physics/quantum", sub.Path)
	assert.Equal(t, 1, sub.Level)

	// The old parent lost the child and its content totals.
	root, err := svc.Get(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), root.SubcategoryCount)
	assert.Equal(t, int64(0), root.TotalContentCount)

	// The moved node kept its own totals.
	moved, err = svc.Get(ctx, physics.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved.TotalContentCount)
}

func TestMoveUnderNewParentTransfersTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	arts := mustCreate(t, svc, "Arts", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)

	_, err := svc.ApplyContentDelta(ctx, physics.ID, 4)
	require.NoError(t, err)

	_, err = svc.Update(ctx, physics.ID, service.UpdateCategoryInput{ParentID: &arts.ID})
	require.NoError(t, err)

	from, err := svc.Get(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), from.SubcategoryCount)
	assert.Equal(t, int64(0), from.TotalContentCount)

	to, err := svc.Get(ctx, arts.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), to.SubcategoryCount)
	assert.Equal(t, int64(4), to.TotalContentCount)
}

func TestMoveOntoDescendantFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	x := mustCreate(t, svc, "X", nil)
	child := mustCreate(t, svc, "Child", &x.ID)
	grandchild := mustCreate(t, svc, "Grandchild", &child.ID)

	var cerr *taxonomy.CycleError
	_, err := svc.Update(ctx, x.ID, service.UpdateCategoryInput{ParentID: &grandchild.ID})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, x.ID, cerr.NodeID)

	// The node is unchanged.
	got, err := svc.Get(ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "/x", got.Path)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, x.Version, got.Version)
}

func TestUpdateSlugRebuildsDescendantPaths(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)

	newSlug := model.NewMultilingualText("en", "natural-sciences")
	updated, err := svc.Update(ctx, sciences.ID, service.UpdateCategoryInput{Slug: &newSlug})
	require.NoError(t, err)
	assert.Equal(t, "/natural-sciences", updated.Path)

	child, err := svc.Get(ctx, physics.ID)
	require.NoError(t, err)
	assert.Equal(t, "/natural-sciences/physics", child.Path)
}

func TestUpdateVersionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c := mustCreate(t, svc, "Sciences", nil)

	stale := c.Version
	order := 5
	_, err := svc.Update(ctx, c.ID, service.UpdateCategoryInput{SortOrder: &order})
	require.NoError(t, err)

	var conflict *taxonomy.ConcurrentModificationError
	order = 7
	_, err = svc.Update(ctx, c.ID, service.UpdateCategoryInput{
		SortOrder:       &order,
		ExpectedVersion: &stale,
	})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, c.ID, conflict.ID)
}

func TestUpdateRejectsConflictingParentFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c := mustCreate(t, svc, "Sciences", nil)

	var verr *taxonomy.ValidationError
	_, err := svc.Update(ctx, c.ID, service.UpdateCategoryInput{
		ParentID:   &c.ID,
		MoveToRoot: true,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent_id", verr.Field)
}

func TestGetTree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)
	mustCreate(t, svc, "Chemistry", &sciences.ID)
	mustCreate(t, svc, "Quantum", &physics.ID)

	nodes, err := svc.GetTree(ctx, nil, 3, false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 2)

	// Siblings order by sort_order, then primary-language name.
	assert.Equal(t, "Chemistry", nodes[0].Children[0].Name.Resolve("en"))
	assert.Equal(t, "Physics", nodes[0].Children[1].Name.Resolve("en"))
	require.Len(t, nodes[0].Children[1].Children, 1)
	assert.Equal(t, "/sciences/physics/quantum", nodes[0].Children[1].Children[0].Path)

	// Depth bound prunes lower levels.
	nodes, err = svc.GetTree(ctx, nil, 1, false)
	require.NoError(t, err)
	assert.Empty(t, nodes[0].Children)

	// Subtree root.
	nodes, err = svc.GetTree(ctx, &physics.ID, 2, false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, physics.ID, nodes[0].ID)
	assert.Len(t, nodes[0].Children, 1)

	var verr *taxonomy.ValidationError
	_, err = svc.GetTree(ctx, nil, 0, false)
	require.ErrorAs(t, err, &verr)
	_, err = svc.GetTree(ctx, nil, 99, false)
	require.ErrorAs(t, err, &verr)
}

func TestGetTreeUsesCache(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	backend := cache.NewSimpleMemoryCache(time.Minute)
	t.Cleanup(func() { _ = backend.Close() })
	trees := cache.NewTreeCache(backend, time.Minute)

	svc := service.NewCategoryService(db, testutil.TestLogger(), service.Options{
		MaxDepth:        10,
		DefaultLanguage: "en",
		TreeCache:       trees,
	})
	ctx := context.Background()

	mustCreate(t, svc, "Sciences", nil)

	first, err := svc.GetTree(ctx, nil, 3, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A write bypassing invalidation is not visible until the cache is
	// dropped: GetTree serves the cached shape.
	mustCreate(t, svc, "Arts", nil)
	cached, err := svc.GetTree(ctx, nil, 3, false)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	require.NoError(t, trees.Invalidate(ctx))
	fresh, err := svc.GetTree(ctx, nil, 3, false)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	_, err := svc.Create(ctx, service.CreateCategoryInput{
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", "Physics", "cs", "Fyzika"),
		ParentID:     &sciences.ID,
	})
	require.NoError(t, err)

	items, total, err := svc.Search(ctx, service.SearchInput{Query: "fyzika", Language: "cs"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "/sciences/physics", items[0].Path)

	_, total, err = svc.Search(ctx, service.SearchInput{Query: "fyzika", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	var verr *taxonomy.ValidationError
	_, _, err = svc.Search(ctx, service.SearchInput{Limit: service.MaxSearchLimit + 1})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "limit", verr.Field)

	_, _, err = svc.Search(ctx, service.SearchInput{Language: "English"})
	require.ErrorAs(t, err, &verr)

	_, _, err = svc.Search(ctx, service.SearchInput{CategoryType: "bogus"})
	require.ErrorAs(t, err, &verr)
}

func TestMutationsAppendOutboxEvents(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)
	_, err := svc.ApplyContentDelta(ctx, physics.ID, 1)
	require.NoError(t, err)
	_, err = svc.Update(ctx, physics.ID, service.UpdateCategoryInput{MoveToRoot: true})
	require.NoError(t, err)

	events, err := q.ListPendingEvents(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, model.EventCategoryCreated, events[0].EventType)
	assert.Equal(t, model.EventCategoryCreated, events[1].EventType)
	assert.Equal(t, model.EventCategoryUpdated, events[2].EventType)
	assert.Equal(t, model.EventCategoryMoved, events[3].EventType)
	assert.Equal(t, physics.ID, events[3].CategoryID)
}

func TestRecalculateRepairsDrift(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	sciences := mustCreate(t, svc, "Sciences", nil)
	physics := mustCreate(t, svc, "Physics", &sciences.ID)
	_, err := svc.ApplyContentDelta(ctx, physics.ID, 3)
	require.NoError(t, err)

	// Corrupt the denormalized counters directly.
	require.NoError(t, q.SetCounters(ctx, sciences.ID, 0, 9, 99))

	repaired, err := svc.Recalculate(ctx, sciences.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repaired.SubcategoryCount)
	assert.Equal(t, int64(3), repaired.TotalContentCount)
}
