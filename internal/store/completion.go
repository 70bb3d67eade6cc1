package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

// CompletionStore has no update path: completion events are immutable.
type CompletionStore struct {
	q Querier
}

func NewCompletionStore(q Querier) *CompletionStore {
	return &CompletionStore{q: q}
}

const completionCols = `id, occurrence_id, member_id, timestamp, notes, sync_revision`

func scanCompletion(s scanner) (*model.CompletionEvent, error) {
	var c model.CompletionEvent
	err := s.Scan(&c.ID, &c.OccurrenceID, &c.MemberID, &c.Timestamp, &c.Notes, &c.SyncRevision)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CompletionStore) Get(ctx context.Context, id uuid.UUID) (*model.CompletionEvent, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+completionCols+` FROM completion_events WHERE id = ?`, id.String())
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) Insert(ctx context.Context, c model.CompletionEvent) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO completion_events (`+completionCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.OccurrenceID.String(), c.MemberID.String(), utc(c.Timestamp), nullString(c.Notes), c.SyncRevision,
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// ListSince returns completions stamped after rev, oldest revision first.
func (s *CompletionStore) ListSince(ctx context.Context, rev int64) ([]model.CompletionEvent, error) {
	events, err := queryAll(ctx, s.q, scanCompletion,
		`SELECT `+completionCols+` FROM completion_events WHERE sync_revision > ? ORDER BY sync_revision ASC`, rev)
	if err != nil {
		return nil, fmt.Errorf("list completions since: %w", err)
	}
	return events, nil
}
