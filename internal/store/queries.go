// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrVersionMismatch is returned by guarded updates when the row's version
// no longer matches the expected one. The row still exists; a concurrent
// writer got there first.
var ErrVersionMismatch = errors.New("version mismatch")

// DBTX is the subset of *sql.DB / *sql.Tx the queries need, so the same
// Queries value works inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries wraps a database handle with the taxonomy query set.
type Queries struct {
	db DBTX
}

// New creates a Queries over a database or transaction handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
