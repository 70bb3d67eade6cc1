// Package scheduler materializes task occurrences from template cadences.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/alternation"
	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/recurrence"
)

// Store is the record store the scheduler reads and writes.
type Store interface {
	OccurrencesForTemplate(ctx context.Context, templateID uuid.UUID) ([]model.TaskOccurrence, error)
	// CompletionsForOccurrences returns completions newest first.
	CompletionsForOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) ([]model.CompletionEvent, error)
	InsertOccurrence(ctx context.Context, occ model.TaskOccurrence) error
	SaveTemplate(ctx context.Context, tmpl model.TaskTemplate) error
}

// PurgeStore is the store needed to reset a template's expansion.
type PurgeStore interface {
	OccurrencesForTemplate(ctx context.Context, templateID uuid.UUID) ([]model.TaskOccurrence, error)
	DeleteOccurrence(ctx context.Context, id uuid.UUID) error
	SaveTemplate(ctx context.Context, tmpl model.TaskTemplate) error
}

type Scheduler struct {
	store  Store
	engine alternation.Engine
	now    func() time.Time
}

func New(store Store, engine alternation.Engine) *Scheduler {
	return &Scheduler{store: store, engine: engine, now: time.Now}
}

// SetClock replaces the time source used for ScheduledAt and UpdatedAt.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// EnsureOccurrences creates the pending occurrences of tmpl due up to and
// including horizon. Due dates that already exist are never recreated, so
// repeated calls are no-ops until the horizon moves forward. It returns the
// number of occurrences created.
//
// When at least one occurrence is created, tmpl is updated in place with the
// new LastGeneratedDate and marked dirty, then saved.
func (s *Scheduler) EnsureOccurrences(ctx context.Context, tmpl *model.TaskTemplate, members []model.Member, horizon time.Time) (int, error) {
	cadence := recurrence.Of(tmpl)
	if !tmpl.IsActive || !cadence.Valid() {
		return 0, nil
	}

	existing, err := s.store.OccurrencesForTemplate(ctx, tmpl.ID)
	if err != nil {
		return 0, fmt.Errorf("load occurrences: %w", err)
	}

	anchor := tmpl.Anchor()
	materialized := make(map[int64]bool, len(existing))
	known := make(map[uuid.UUID]bool, len(existing))
	load := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0, len(existing))
	working := anchor
	anchored := false
	for _, occ := range existing {
		materialized[occ.DueDate.UnixNano()] = true
		known[occ.ID] = true
		ids = append(ids, occ.ID)
		if occ.Status == model.StatusPending && occ.AssignedMemberID != nil {
			load[*occ.AssignedMemberID]++
		}
		if !occ.DueDate.Before(anchor) {
			anchored = true
			if occ.DueDate.After(working) {
				working = occ.DueDate
			}
		}
	}

	history, err := s.store.CompletionsForOccurrences(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load completion history: %w", err)
	}

	now := s.now()
	created := 0
	var last time.Time
	create := func(due time.Time) error {
		id := OccurrenceID(tmpl.ID, due)
		if known[id] {
			// The slot's occurrence exists under a moved due date.
			return nil
		}
		occ := model.TaskOccurrence{
			ID:          id,
			TemplateID:  tmpl.ID,
			DueDate:     due,
			Status:      model.StatusPending,
			ScheduledAt: now,
		}
		if m := s.engine.NextAssignee(members, history, load); m != nil {
			assignee := m.ID
			occ.AssignedMemberID = &assignee
			load[assignee]++
		}
		if err := s.store.InsertOccurrence(ctx, occ); err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
		materialized[due.UnixNano()] = true
		known[id] = true
		created++
		last = due
		return nil
	}

	if !anchored && !anchor.After(horizon) && !materialized[anchor.UnixNano()] {
		if err := create(anchor); err != nil {
			return created, err
		}
	}

	for _, due := range recurrence.Expand(cadence, working, horizon) {
		if materialized[due.UnixNano()] {
			continue
		}
		if err := create(due); err != nil {
			return created, err
		}
	}

	if created == 0 {
		return 0, nil
	}

	tmpl.LastGeneratedDate = &last
	tmpl.UpdatedAt = now
	tmpl.SyncRevision = 0
	if err := s.store.SaveTemplate(ctx, *tmpl); err != nil {
		return created, fmt.Errorf("save template: %w", err)
	}
	return created, nil
}

// OccurrenceID derives the id of the occurrence a template's cadence places
// at due. Devices that expand the same template independently therefore
// produce the same records, which the server merges into one.
func OccurrenceID(templateID uuid.UUID, due time.Time) uuid.UUID {
	return uuid.NewSHA1(templateID, []byte(due.UTC().Format(time.RFC3339Nano)))
}

// PurgePending removes every pending occurrence of tmpl and clears its
// LastGeneratedDate so the next expansion starts over from the anchor.
// Completed and skipped occurrences are kept.
func PurgePending(ctx context.Context, store PurgeStore, tmpl *model.TaskTemplate) (int, error) {
	existing, err := store.OccurrencesForTemplate(ctx, tmpl.ID)
	if err != nil {
		return 0, fmt.Errorf("load occurrences: %w", err)
	}

	purged := 0
	for _, occ := range existing {
		if occ.Status != model.StatusPending {
			continue
		}
		if err := store.DeleteOccurrence(ctx, occ.ID); err != nil {
			return purged, fmt.Errorf("delete occurrence: %w", err)
		}
		purged++
	}

	tmpl.LastGeneratedDate = nil
	tmpl.SyncRevision = 0
	if err := store.SaveTemplate(ctx, *tmpl); err != nil {
		return purged, fmt.Errorf("save template: %w", err)
	}
	return purged, nil
}
