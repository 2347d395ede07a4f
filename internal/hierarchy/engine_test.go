// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package hierarchy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/otax-go/internal/hierarchy"
	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/store"
	"github.com/olegiv/otax-go/internal/taxonomy"
	"github.com/olegiv/otax-go/internal/testutil"
)

func seedCategory(t *testing.T, q *store.Queries, name, path string, level int, parentID *string) model.Category {
	t.Helper()

	now := time.Now()
	c := model.Category{
		ID:           uuid.NewString(),
		CategoryType: model.CategoryTypeTopic,
		Name:         model.NewMultilingualText("en", name),
		Slug:         model.NewMultilingualText("en", name),
		ParentID:     parentID,
		Level:        level,
		Path:         path,
		IsActive:     true,
		Visibility:   model.VisibilityPublic,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := q.CreateCategory(context.Background(), &c); err != nil {
		t.Fatalf("CreateCategory(%s): %v", path, err)
	}
	return c
}

func TestComputePath(t *testing.T) {
	e := hierarchy.New(nil, 3, "en")

	path, level, err := e.ComputePath(nil,
		model.NewMultilingualText("en", "sciences"), model.MultilingualText{})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if path != "/sciences" || level != 0 {
		t.Errorf("root: path=%q level=%d", path, level)
	}

	parent := &model.Category{Path: "/sciences", Level: 0}
	path, level, err = e.ComputePath(parent,
		model.NewMultilingualText("en", "physics"), model.MultilingualText{})
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if path != "/sciences/physics" || level != 1 {
		t.Errorf("child: path=%q level=%d", path, level)
	}

	// Slug empty: the name is slugified instead.
	path, _, err = e.ComputePath(parent,
		model.MultilingualText{}, model.NewMultilingualText("en", "Vědy a Technika"))
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if path != "/sciences/vedy-a-technika" {
		t.Errorf("derived path = %q", path)
	}

	// Neither slug nor name resolves to a segment.
	var verr *taxonomy.ValidationError
	_, _, err = e.ComputePath(parent, model.MultilingualText{}, model.MultilingualText{})
	if !errors.As(err, &verr) {
		t.Errorf("empty segment: got %v, want ValidationError", err)
	}
}

func TestComputePathDepthLimit(t *testing.T) {
	e := hierarchy.New(nil, 2, "en")

	deep := &model.Category{Path: "/a/b", Level: 1}
	_, _, err := e.ComputePath(deep,
		model.NewMultilingualText("en", "c"), model.MultilingualText{})
	var verr *taxonomy.ValidationError
	if !errors.As(err, &verr) || verr.Field != "parent_id" {
		t.Errorf("depth limit: got %v, want ValidationError on parent_id", err)
	}
}

func TestWouldCreateCycle(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	q := store.New(db)
	ctx := context.Background()
	e := hierarchy.New(q, 10, "en")

	root := seedCategory(t, q, "sciences", "/sciences", 0, nil)
	physics := seedCategory(t, q, "physics", "/sciences/physics", 1, &root.ID)
	quantum := seedCategory(t, q, "quantum", "/sciences/physics/quantum", 2, &physics.ID)
	other := seedCategory(t, q, "arts", "/arts", 0, nil)

	// Self-parenting.
	cycle, err := e.WouldCreateCycle(ctx, root.ID, root.ID)
	if err != nil || !cycle {
		t.Errorf("self: cycle=%v err=%v", cycle, err)
	}

	// Onto a direct child and a grandchild.
	cycle, err = e.WouldCreateCycle(ctx, root.ID, physics.ID)
	if err != nil || !cycle {
		t.Errorf("child: cycle=%v err=%v", cycle, err)
	}
	cycle, err = e.WouldCreateCycle(ctx, root.ID, quantum.ID)
	if err != nil || !cycle {
		t.Errorf("grandchild: cycle=%v err=%v", cycle, err)
	}

	// Legitimate moves are not cycles.
	cycle, err = e.WouldCreateCycle(ctx, quantum.ID, other.ID)
	if err != nil || cycle {
		t.Errorf("unrelated: cycle=%v err=%v", cycle, err)
	}
	cycle, err = e.WouldCreateCycle(ctx, physics.ID, root.ID)
	if err != nil || cycle {
		t.Errorf("up the chain: cycle=%v err=%v", cycle, err)
	}

	// Unknown candidate parent.
	var nf *taxonomy.NotFoundError
	_, err = e.WouldCreateCycle(ctx, root.ID, "missing")
	if !errors.As(err, &nf) {
		t.Errorf("missing parent: got %v, want NotFoundError", err)
	}
}

func TestRebuildDescendantPaths(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	q := store.New(db)
	ctx := context.Background()
	e := hierarchy.New(q, 10, "en")

	root := seedCategory(t, q, "sciences", "/sciences", 0, nil)
	physics := seedCategory(t, q, "physics", "/sciences/physics", 1, &root.ID)
	seedCategory(t, q, "quantum", "/sciences/physics/quantum", 2, &physics.ID)

	// Physics moves to root: level drops by one, prefixes rewritten.
	rewrites, err := e.RebuildDescendantPaths(ctx, "/sciences/physics", "/physics", -1)
	if err != nil {
		t.Fatalf("RebuildDescendantPaths: %v", err)
	}
	if len(rewrites) != 1 {
		t.Fatalf("rewrites = %d, want 1", len(rewrites))
	}
	r := rewrites[0]
	if r.NewPath != "/physics/quantum" || r.NewLevel != 1 || r.ExpectedVersion != 1 {
		t.Errorf("rewrite = %+v", r)
	}

	// No-op rename produces no rewrites.
	rewrites, err = e.RebuildDescendantPaths(ctx, "/sciences", "/sciences", 0)
	if err != nil || rewrites != nil {
		t.Errorf("no-op: %v, %v", rewrites, err)
	}
}

func TestRebuildDescendantPathsDepthLimit(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	q := store.New(db)
	ctx := context.Background()
	e := hierarchy.New(q, 3, "en")

	root := seedCategory(t, q, "a", "/a", 0, nil)
	b := seedCategory(t, q, "b", "/a/b", 1, &root.ID)
	seedCategory(t, q, "c", "/a/b/c", 2, &b.ID)

	// Pushing the subtree one level deeper would exceed the limit.
	var verr *taxonomy.ValidationError
	_, err := e.RebuildDescendantPaths(ctx, "/a/b", "/x/y/b", 1)
	if !errors.As(err, &verr) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestCheckSlugUnique(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	q := store.New(db)
	ctx := context.Background()
	e := hierarchy.New(q, 10, "en")

	root := seedCategory(t, q, "sciences", "/sciences", 0, nil)
	physics := seedCategory(t, q, "physics", "/sciences/physics", 1, &root.ID)

	var dup *taxonomy.DuplicateSlugError
	err := e.CheckSlugUnique(ctx, &root.ID, model.NewMultilingualText("en", "physics"), "")
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want DuplicateSlugError", err)
	}
	if dup.Language != "en" || dup.Slug != "physics" {
		t.Errorf("dup = %+v", dup)
	}

	// Excluding the node itself, or using a fresh slug, passes.
	if err := e.CheckSlugUnique(ctx, &root.ID, model.NewMultilingualText("en", "physics"), physics.ID); err != nil {
		t.Errorf("exclude self: %v", err)
	}
	if err := e.CheckSlugUnique(ctx, &root.ID, model.NewMultilingualText("en", "chemistry"), ""); err != nil {
		t.Errorf("fresh slug: %v", err)
	}
}

func TestAncestors(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	q := store.New(db)
	ctx := context.Background()
	e := hierarchy.New(q, 10, "en")

	root := seedCategory(t, q, "sciences", "/sciences", 0, nil)
	physics := seedCategory(t, q, "physics", "/sciences/physics", 1, &root.ID)
	quantum := seedCategory(t, q, "quantum", "/sciences/physics/quantum", 2, &physics.ID)

	chain, err := e.Ancestors(ctx, &quantum)
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(chain) != 2 || chain[0].ID != physics.ID || chain[1].ID != root.ID {
		t.Errorf("chain = %+v", chain)
	}

	chain, err = e.Ancestors(ctx, &root)
	if err != nil || len(chain) != 0 {
		t.Errorf("root ancestors = %v, %v", chain, err)
	}
}
