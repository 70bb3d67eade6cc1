package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

type OccurrenceStore struct {
	q Querier
}

func NewOccurrenceStore(q Querier) *OccurrenceStore {
	return &OccurrenceStore{q: q}
}

const occurrenceCols = `id, template_id, due_date, status, assigned_member_id, scheduled_at,
	completed_at, notes, sync_revision`

func scanOccurrence(s scanner) (*model.TaskOccurrence, error) {
	var o model.TaskOccurrence
	var status string
	var assignee uuid.NullUUID
	err := s.Scan(&o.ID, &o.TemplateID, &o.DueDate, &status, &assignee, &o.ScheduledAt,
		&o.CompletedAt, &o.Notes, &o.SyncRevision)
	if err != nil {
		return nil, err
	}
	o.Status = model.ParseStatus(status)
	if assignee.Valid {
		o.AssignedMemberID = &assignee.UUID
	}
	return &o, nil
}

func (s *OccurrenceStore) Get(ctx context.Context, id uuid.UUID) (*model.TaskOccurrence, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+occurrenceCols+` FROM task_occurrences WHERE id = ?`, id.String())
	o, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return o, nil
}

func (s *OccurrenceStore) Insert(ctx context.Context, o model.TaskOccurrence) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO task_occurrences (`+occurrenceCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.TemplateID.String(), utc(o.DueDate), string(o.Status), nullUUID(o.AssignedMemberID),
		utc(o.ScheduledAt), nullTime(o.CompletedAt), nullString(o.Notes), o.SyncRevision,
	)
	if err != nil {
		return fmt.Errorf("insert occurrence: %w", err)
	}
	return nil
}

func (s *OccurrenceStore) Update(ctx context.Context, o model.TaskOccurrence) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE task_occurrences SET template_id = ?, due_date = ?, status = ?, assigned_member_id = ?,
		 scheduled_at = ?, completed_at = ?, notes = ?, sync_revision = ?
		 WHERE id = ?`,
		o.TemplateID.String(), utc(o.DueDate), string(o.Status), nullUUID(o.AssignedMemberID),
		utc(o.ScheduledAt), nullTime(o.CompletedAt), nullString(o.Notes), o.SyncRevision, o.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	return nil
}

// ListSince returns occurrences stamped after rev, oldest revision first.
func (s *OccurrenceStore) ListSince(ctx context.Context, rev int64) ([]model.TaskOccurrence, error) {
	occs, err := queryAll(ctx, s.q, scanOccurrence,
		`SELECT `+occurrenceCols+` FROM task_occurrences WHERE sync_revision > ? ORDER BY sync_revision ASC`, rev)
	if err != nil {
		return nil, fmt.Errorf("list occurrences since: %w", err)
	}
	return occs, nil
}
