// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance for the category hierarchy:
// a nightly counter repair sweep and hourly pruning of dispatched events.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/otax-go/internal/service"
	"github.com/olegiv/otax-go/internal/store"
)

// EventRetention is how long dispatched outbox events are kept for audit
// before pruning.
const EventRetention = 30 * 24 * time.Hour

// Scheduler handles scheduled maintenance tasks.
type Scheduler struct {
	db         *sql.DB
	categories *service.CategoryService
	cron       *cron.Cron
	logger     *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, categories *service.CategoryService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:         db,
		categories: categories,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start registers the maintenance jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	// Counter repair sweep, nightly at 03:30.
	if _, err := s.cron.AddFunc("30 3 * * *", func() {
		if err := s.repairCounters(); err != nil {
			s.logger.Error("failed to repair category counters", "error", err)
		}
	}); err != nil {
		return err
	}

	// Dispatched event pruning, hourly.
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.pruneEvents(); err != nil {
			s.logger.Error("failed to prune dispatched events", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// repairCounters recalculates denormalized counters for every root subtree.
// Recalculation is idempotent, so a sweep over a healthy tree is a no-op
// apart from version bumps on drifted rows.
func (s *Scheduler) repairCounters() error {
	ctx := context.Background()
	queries := store.New(s.db)

	roots, err := queries.ListChildren(ctx, nil, true)
	if err != nil {
		return err
	}

	start := time.Now()
	for _, root := range roots {
		if _, err := s.categories.Recalculate(ctx, root.ID); err != nil {
			s.logger.Error("failed to recalculate subtree",
				"category_id", root.ID,
				"path", root.Path,
				"error", err,
			)
			continue
		}
	}

	s.logger.Info("counter repair sweep finished",
		"roots", len(roots),
		"elapsed", time.Since(start),
	)
	return nil
}

// pruneEvents deletes dispatched outbox events older than EventRetention.
func (s *Scheduler) pruneEvents() error {
	ctx := context.Background()
	queries := store.New(s.db)

	pruned, err := queries.PruneDispatchedEvents(ctx, time.Now().Add(-EventRetention))
	if err != nil {
		return err
	}
	if pruned > 0 {
		s.logger.Info("pruned dispatched events", "count", pruned)
	}
	return nil
}
