// Package replication merges device pushes into the server database and
// answers pulls.
package replication

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/revision"
	"github.com/dukerupert/choresync/internal/store"
)

type Engine struct {
	db          *sql.DB
	counter     *revision.Counter
	notifier    Notifier
	broadcaster Broadcaster
	logger      *slog.Logger
}

// New creates an Engine. notifier and broadcaster may be nil.
func New(db *sql.DB, counter *revision.Counter, notifier Notifier, broadcaster Broadcaster, logger *slog.Logger) *Engine {
	return &Engine{
		db:          db,
		counter:     counter,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger.With("component", "replication"),
	}
}

// Pull returns every record stamped after since, plus the current revision,
// read inside one transaction.
func (e *Engine) Pull(ctx context.Context, since int64) (model.PullResponse, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PullResponse{}, fmt.Errorf("begin pull: %w", err)
	}
	defer tx.Rollback()

	var resp model.PullResponse
	if resp.Revision, err = e.counter.Current(ctx, tx); err != nil {
		return model.PullResponse{}, err
	}
	if resp.Members, err = store.NewMemberStore(tx).ListSince(ctx, since); err != nil {
		return model.PullResponse{}, err
	}
	if resp.Templates, err = store.NewTemplateStore(tx).ListSince(ctx, since); err != nil {
		return model.PullResponse{}, err
	}
	if resp.Occurrences, err = store.NewOccurrenceStore(tx).ListSince(ctx, since); err != nil {
		return model.PullResponse{}, err
	}
	if resp.Completions, err = store.NewCompletionStore(tx).ListSince(ctx, since); err != nil {
		return model.PullResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.PullResponse{}, fmt.Errorf("commit pull: %w", err)
	}
	return resp, nil
}

// Push merges req, hands the resulting notification jobs to the notifier
// and returns everything stamped after req.BaseRevision.
func (e *Engine) Push(ctx context.Context, req model.PushRequest) (model.PullResponse, error) {
	res, err := e.merge(ctx, req)
	if err != nil {
		return model.PullResponse{}, err
	}

	if len(res.jobs) > 0 && e.notifier != nil {
		e.notifier.Enqueue(res.jobs)
	}

	resp, err := e.Pull(ctx, req.BaseRevision)
	if err != nil {
		return model.PullResponse{}, err
	}

	if res.written > 0 && e.broadcaster != nil {
		e.broadcaster.BroadcastRevision(resp.Revision)
	}
	return resp, nil
}

// Merge applies req in a single transaction and returns the notification
// jobs it produced. Nothing is applied if any record fails.
func (e *Engine) Merge(ctx context.Context, req model.PushRequest) ([]Job, error) {
	res, err := e.merge(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.jobs, nil
}
