package replication

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/revision"
	"github.com/dukerupert/choresync/internal/store"
)

type mergeResult struct {
	jobs    []Job
	written int
	skipped int
}

// shouldApply is the last-writer-wins rule. A dirty incoming record (0)
// always wins; otherwise the sender must have seen a newer server state
// than the one stored.
func shouldApply(incoming, stored int64) bool {
	return incoming == 0 || incoming > stored
}

// merger applies one push inside a transaction.
type merger struct {
	tx          *sql.Tx
	counter     *revision.Counter
	members     *store.MemberStore
	templates   *store.TemplateStore
	occurrences *store.OccurrenceStore
	completions *store.CompletionStore
	res         mergeResult
}

func (e *Engine) merge(ctx context.Context, req model.PushRequest) (mergeResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return mergeResult{}, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	m := &merger{
		tx:          tx,
		counter:     e.counter,
		members:     store.NewMemberStore(tx),
		templates:   store.NewTemplateStore(tx),
		occurrences: store.NewOccurrenceStore(tx),
		completions: store.NewCompletionStore(tx),
	}

	// Templates go before occurrences so jobs can name templates that
	// arrive in the same push.
	for _, rec := range req.Members {
		if err := m.member(ctx, rec); err != nil {
			return mergeResult{}, err
		}
	}
	for _, rec := range req.Templates {
		if err := m.template(ctx, rec); err != nil {
			return mergeResult{}, err
		}
	}
	for _, rec := range req.Occurrences {
		if err := m.occurrence(ctx, rec); err != nil {
			return mergeResult{}, err
		}
	}
	for _, rec := range req.Completions {
		if err := m.completion(ctx, rec); err != nil {
			return mergeResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return mergeResult{}, fmt.Errorf("commit merge: %w", err)
	}

	e.logger.Debug("merged push",
		"base_revision", req.BaseRevision,
		"written", m.res.written,
		"skipped", m.res.skipped,
		"jobs", len(m.res.jobs),
	)
	return m.res, nil
}

func (m *merger) stamp(ctx context.Context) (int64, error) {
	rev, err := m.counter.Next(ctx, m.tx)
	if err != nil {
		return 0, err
	}
	m.res.written++
	return rev, nil
}

func (m *merger) member(ctx context.Context, rec model.Member) error {
	existing, err := m.members.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	if existing != nil && !shouldApply(rec.SyncRevision, existing.SyncRevision) {
		m.res.skipped++
		return nil
	}
	if rec.SyncRevision, err = m.stamp(ctx); err != nil {
		return err
	}
	if existing == nil {
		return m.members.Insert(ctx, rec)
	}
	return m.members.Update(ctx, rec)
}

func (m *merger) template(ctx context.Context, rec model.TaskTemplate) error {
	existing, err := m.templates.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	if existing != nil && !shouldApply(rec.SyncRevision, existing.SyncRevision) {
		m.res.skipped++
		return nil
	}
	if rec.SyncRevision, err = m.stamp(ctx); err != nil {
		return err
	}
	if existing == nil {
		// A template created without a start date is anchored at its creation.
		if rec.StartDate == nil {
			start := rec.CreatedAt
			rec.StartDate = &start
		}
		return m.templates.Insert(ctx, rec)
	}
	return m.templates.Update(ctx, rec)
}

func (m *merger) occurrence(ctx context.Context, rec model.TaskOccurrence) error {
	existing, err := m.occurrences.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		if rec.SyncRevision, err = m.stamp(ctx); err != nil {
			return err
		}
		return m.occurrences.Insert(ctx, rec)
	}
	if !shouldApply(rec.SyncRevision, existing.SyncRevision) {
		m.res.skipped++
		return nil
	}

	// Orphaned occurrences merge without notifying anyone.
	tmpl, err := m.templates.Get(ctx, rec.TemplateID)
	if err != nil {
		return err
	}
	if tmpl != nil {
		m.res.jobs = append(m.res.jobs, diffOccurrence(*existing, rec, tmpl.Title)...)
	}

	if rec.SyncRevision, err = m.stamp(ctx); err != nil {
		return err
	}
	return m.occurrences.Update(ctx, rec)
}

func (m *merger) completion(ctx context.Context, rec model.CompletionEvent) error {
	existing, err := m.completions.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		m.res.skipped++
		return nil
	}
	if rec.SyncRevision, err = m.stamp(ctx); err != nil {
		return err
	}
	return m.completions.Insert(ctx, rec)
}
