package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

type TemplateStore struct {
	q Querier
}

func NewTemplateStore(q Querier) *TemplateStore {
	return &TemplateStore{q: q}
}

const templateCols = `id, title, details, cadence_unit, cadence_value, lead_time_hours, is_active,
	created_at, updated_at, start_date, last_generated_date, sync_revision`

func scanTemplate(s scanner) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	var unit string
	err := s.Scan(&t.ID, &t.Title, &t.Details, &unit, &t.CadenceValue, &t.LeadTimeHours, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt, &t.StartDate, &t.LastGeneratedDate, &t.SyncRevision)
	if err != nil {
		return nil, err
	}
	t.CadenceUnit = model.ParseCadenceUnit(unit)
	return &t, nil
}

func (s *TemplateStore) Get(ctx context.Context, id uuid.UUID) (*model.TaskTemplate, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+templateCols+` FROM task_templates WHERE id = ?`, id.String())
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) Insert(ctx context.Context, t model.TaskTemplate) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO task_templates (`+templateCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Title, nullString(t.Details), string(t.CadenceUnit), t.CadenceValue, t.LeadTimeHours, t.IsActive,
		utc(t.CreatedAt), utc(t.UpdatedAt), nullTime(t.StartDate), nullTime(t.LastGeneratedDate), t.SyncRevision,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *TemplateStore) Update(ctx context.Context, t model.TaskTemplate) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE task_templates SET title = ?, details = ?, cadence_unit = ?, cadence_value = ?,
		 lead_time_hours = ?, is_active = ?, created_at = ?, updated_at = ?, start_date = ?,
		 last_generated_date = ?, sync_revision = ?
		 WHERE id = ?`,
		t.Title, nullString(t.Details), string(t.CadenceUnit), t.CadenceValue,
		t.LeadTimeHours, t.IsActive, utc(t.CreatedAt), utc(t.UpdatedAt), nullTime(t.StartDate),
		nullTime(t.LastGeneratedDate), t.SyncRevision, t.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// ListSince returns templates stamped after rev, oldest revision first.
func (s *TemplateStore) ListSince(ctx context.Context, rev int64) ([]model.TaskTemplate, error) {
	templates, err := queryAll(ctx, s.q, scanTemplate,
		`SELECT `+templateCols+` FROM task_templates WHERE sync_revision > ? ORDER BY sync_revision ASC`, rev)
	if err != nil {
		return nil, fmt.Errorf("list templates since: %w", err)
	}
	return templates, nil
}
