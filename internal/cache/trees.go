// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"time"

	"github.com/olegiv/otax-go/internal/model"
)

// TreeKeyPrefix namespaces all category tree entries so they can be
// invalidated together.
const TreeKeyPrefix = "tree:"

// DefaultTreeTTL bounds staleness even if an invalidation is lost.
const DefaultTreeTTL = 5 * time.Minute

// TreeCache caches assembled category trees keyed by root, depth and
// visibility flags. Mutations do not touch it directly; the outbox
// dispatcher invalidates the whole namespace when a category event is
// delivered.
type TreeCache struct {
	backend Cacher
	typed   *TypedCache[[]*model.TreeNode]
}

// NewTreeCache creates a TreeCache over the given backend. A zero ttl uses
// DefaultTreeTTL.
func NewTreeCache(backend Cacher, ttl time.Duration) *TreeCache {
	if ttl == 0 {
		ttl = DefaultTreeTTL
	}
	return &TreeCache{
		backend: backend,
		typed:   NewTypedCache[[]*model.TreeNode](backend, ttl),
	}
}

// Get returns the cached tree for key, or false on a miss.
func (c *TreeCache) Get(ctx context.Context, key string) ([]*model.TreeNode, bool) {
	nodes, ok := c.typed.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return *nodes, true
}

// Set stores a tree under key. Errors are dropped: a failed cache write
// only costs the next reader a rebuild.
func (c *TreeCache) Set(ctx context.Context, key string, nodes []*model.TreeNode) {
	_ = c.typed.Set(ctx, key, &nodes)
}

// Invalidate drops every cached tree.
func (c *TreeCache) Invalidate(ctx context.Context) error {
	return c.backend.DeleteByPrefix(ctx, TreeKeyPrefix)
}
