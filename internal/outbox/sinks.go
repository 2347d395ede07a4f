// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package outbox

import (
	"context"
	"log/slog"

	"github.com/olegiv/otax-go/internal/cache"
	"github.com/olegiv/otax-go/internal/model"
)

// CacheInvalidator drops all cached category trees when any category event
// is delivered. Invalidating the whole namespace is deliberate: a single
// move can change paths across an entire subtree, so per-key invalidation
// buys nothing.
type CacheInvalidator struct {
	trees *cache.TreeCache
}

// NewCacheInvalidator creates a CacheInvalidator sink.
func NewCacheInvalidator(trees *cache.TreeCache) *CacheInvalidator {
	return &CacheInvalidator{trees: trees}
}

func (s *CacheInvalidator) Name() string { return "cache_invalidator" }

func (s *CacheInvalidator) Handle(ctx context.Context, _ model.CategoryEvent) error {
	return s.trees.Invalidate(ctx)
}

// AuditLogger writes every category event to the structured log, giving the
// hierarchy an append-only audit trail without a second table.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an AuditLogger sink.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

func (s *AuditLogger) Name() string { return "audit_logger" }

func (s *AuditLogger) Handle(_ context.Context, ev model.CategoryEvent) error {
	s.logger.Info("category event",
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"category_id", ev.CategoryID,
		"payload", ev.Payload,
		"created_at", ev.CreatedAt)
	return nil
}
