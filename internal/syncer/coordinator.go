// Package syncer replicates a device's local store with the sync server.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dukerupert/choresync/internal/localstore"
	"github.com/dukerupert/choresync/internal/model"
)

// Remote is the server side of a sync exchange.
type Remote interface {
	Pull(ctx context.Context, since int64) (model.PullResponse, error)
	Push(ctx context.Context, req model.PushRequest) (model.PullResponse, error)
}

// Coordinator runs at most one sync exchange at a time. A trigger that
// arrives while an exchange is in flight is dropped, not queued.
type Coordinator struct {
	remote  Remote
	store   *localstore.Store
	logger  *slog.Logger
	syncing atomic.Bool
}

func New(remote Remote, store *localstore.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		remote: remote,
		store:  store,
		logger: logger.With("component", "syncer"),
	}
}

// Busy reports whether an exchange is in flight.
func (c *Coordinator) Busy() bool {
	return c.syncing.Load()
}

// SyncNow pushes the full local snapshot when anything is dirty, otherwise
// pulls from the watermark, then applies the response.
func (c *Coordinator) SyncNow(ctx context.Context, reason string) error {
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("sync already in progress, dropping trigger", "reason", reason)
		return nil
	}
	defer c.syncing.Store(false)

	base := c.store.LastAppliedRevision()
	req, dirty := c.CaptureSnapshot(base)

	var (
		resp model.PullResponse
		err  error
	)
	if dirty {
		resp, err = c.remote.Push(ctx, req)
	} else {
		resp, err = c.remote.Pull(ctx, base)
	}
	if err != nil {
		c.logger.Error("sync failed", "reason", reason, "pushed", dirty, "watermark", base, "error", err)
		return fmt.Errorf("sync (%s): %w", reason, err)
	}

	if err := c.Apply(resp); err != nil {
		c.logger.Error("apply sync response", "reason", reason, "error", err)
		return fmt.Errorf("sync (%s): %w", reason, err)
	}
	c.logger.Info("synced", "reason", reason, "pushed", dirty, "revision", resp.Revision)
	return nil
}

// PullIfNeeded pulls from the watermark without sending local state.
func (c *Coordinator) PullIfNeeded(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("sync already in progress, dropping pull")
		return nil
	}
	defer c.syncing.Store(false)

	base := c.store.LastAppliedRevision()
	resp, err := c.remote.Pull(ctx, base)
	if err != nil {
		c.logger.Error("pull failed", "watermark", base, "error", err)
		return fmt.Errorf("pull: %w", err)
	}
	if err := c.Apply(resp); err != nil {
		c.logger.Error("apply pull response", "error", err)
		return fmt.Errorf("pull: %w", err)
	}
	c.logger.Debug("pulled", "revision", resp.Revision)
	return nil
}

// CaptureSnapshot returns every local record as a push request and whether
// any of them is dirty.
func (c *Coordinator) CaptureSnapshot(baseRevision int64) (model.PushRequest, bool) {
	req := c.store.Snapshot()
	req.BaseRevision = baseRevision
	return req, req.HasLocalChanges()
}

// Apply upserts every returned record by id, advances the watermark to the
// response revision and saves. On a save failure the watermark is restored
// so the next exchange starts from the same place.
func (c *Coordinator) Apply(resp model.PullResponse) error {
	prev := c.store.LastAppliedRevision()
	if resp.IsEmpty() && resp.Revision == prev {
		return nil
	}

	if !resp.IsEmpty() {
		for _, m := range resp.Members {
			c.store.UpsertMember(m)
		}
		for _, t := range resp.Templates {
			c.store.UpsertTemplate(t)
		}
		for _, o := range resp.Occurrences {
			c.store.UpsertOccurrence(o)
		}
		for _, e := range resp.Completions {
			c.store.UpsertCompletion(e)
		}
	}

	c.store.SetLastAppliedRevision(resp.Revision)
	if err := c.store.Save(); err != nil {
		c.store.SetLastAppliedRevision(prev)
		return fmt.Errorf("save local store: %w", err)
	}
	return nil
}
