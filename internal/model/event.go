// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Category event types appended to the outbox.
const (
	EventCategoryCreated      = "category.created"
	EventCategoryUpdated      = "category.updated"
	EventCategoryMoved        = "category.moved"
	EventCategoryDeleted      = "category.deleted"
	EventCategoryRecalculated = "category.recalculated"
)

// CategoryEvent is an immutable outbox record appended within the same unit
// of work as a structural change, and dispatched to external collaborators
// (cache invalidation, audit log) after commit.
type CategoryEvent struct {
	ID           int64
	EventType    string
	CategoryID   string
	Payload      string // JSON string
	CreatedAt    time.Time
	DispatchedAt sql.NullTime
}

// IsDispatched reports whether the event was already delivered to all sinks.
func (e *CategoryEvent) IsDispatched() bool {
	return e.DispatchedAt.Valid
}
