// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/otax-go/internal/model"
)

// CreateCategoryEvent appends an immutable event record to the outbox.
// Call it inside the same transaction as the structural change it describes.
func (q *Queries) CreateCategoryEvent(ctx context.Context, eventType, categoryID, payload string, createdAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO category_events (event_type, category_id, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		eventType, categoryID, payload, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return res.LastInsertId()
}

// ListPendingEvents returns undispatched events in append order.
func (q *Queries) ListPendingEvents(ctx context.Context, limit int64) ([]model.CategoryEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_type, category_id, payload, created_at, dispatched_at
		FROM category_events WHERE dispatched_at IS NULL ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.CategoryEvent
	for rows.Next() {
		var e model.CategoryEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.CategoryID, &e.Payload, &e.CreatedAt, &e.DispatchedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkEventDispatched records the delivery time of an event.
func (q *Queries) MarkEventDispatched(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE category_events SET dispatched_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}
	return nil
}

// PruneDispatchedEvents deletes dispatched events older than the cutoff and
// returns the number removed.
func (q *Queries) PruneDispatchedEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM category_events WHERE dispatched_at IS NOT NULL AND dispatched_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
