// Package revision owns the global sync revision counter.
package revision

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Counter is the single revision sequence shared by every synced record.
// Its value lives in the server_revision table; increments are only allowed
// inside a transaction so they commit or roll back with the records stamped.
type Counter struct{}

func NewCounter() *Counter {
	return &Counter{}
}

// Current returns the latest allocated revision without incrementing it.
func (c *Counter) Current(ctx context.Context, q Querier) (int64, error) {
	var value int64
	err := q.QueryRowContext(ctx, `SELECT value FROM server_revision WHERE id = 1`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return value, nil
}

// Next allocates and returns the next revision.
func (c *Counter) Next(ctx context.Context, tx *sql.Tx) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO server_revision (id, value) VALUES (1, 1)
		 ON CONFLICT(id) DO UPDATE SET value = value + 1
		 RETURNING value`,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return value, nil
}
