package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/replication"
	"github.com/dukerupert/choresync/internal/store"
)

const dueLayout = "Jan 2, 2006 at 3:04 PM"

// Compose returns the notification title and body for a merge job.
func Compose(job replication.Job, loc *time.Location) (title, body string) {
	switch job.Kind {
	case replication.JobAssignment:
		return job.TemplateTitle, "New assignment due " + job.Occurrence.DueDate.In(loc).Format(dueLayout)
	default:
		return "Task updated", fmt.Sprintf("%s status changed.", job.TemplateTitle)
	}
}

// Dispatcher delivers merge jobs on a background worker so that pushes never
// wait on the notification transport.
type Dispatcher struct {
	mu      sync.RWMutex
	sender  Sender
	devices *store.DeviceStore
	loc     *time.Location
	logger  *slog.Logger
	queue   chan replication.Job
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a dispatcher holding up to size queued jobs.
// Due dates in notification text are rendered in loc.
func NewDispatcher(sender Sender, devices *store.DeviceStore, loc *time.Location, size int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		devices: devices,
		loc:     loc,
		logger:  logger.With("component", "dispatcher"),
		queue:   make(chan replication.Job, size),
	}
}

// Enqueue queues jobs without blocking. Jobs that do not fit are dropped.
func (d *Dispatcher) Enqueue(jobs []replication.Job) {
	for _, job := range jobs {
		select {
		case d.queue <- job:
		default:
			d.logger.Warn("notification queue full, dropping job",
				"kind", job.Kind, "occurrence", job.Occurrence.ID)
		}
	}
}

// Start begins the worker loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-d.queue:
				d.dispatch(ctx, job)
			}
		}
	}()
}

// Stop stops the worker and waits for the job in progress.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, job replication.Job) {
	var (
		tokens []model.DeviceToken
		err    error
	)
	switch job.Kind {
	case replication.JobAssignment:
		if job.MemberID == nil {
			return
		}
		tokens, err = d.devices.ListByMember(ctx, *job.MemberID)
	default:
		tokens, err = d.devices.List(ctx)
	}
	if err != nil {
		d.logger.Error("list device tokens", "kind", job.Kind, "error", err)
		return
	}

	title, body := Compose(job, d.loc)
	deliver(ctx, d.sender, d.devices, d.logger, tokens, title, body)
}

// deliver sends to every token, forgetting tokens the transport reports
// as expired. Failures are logged only.
func deliver(ctx context.Context, sender Sender, devices *store.DeviceStore, logger *slog.Logger, tokens []model.DeviceToken, title, body string) int {
	sent := 0
	for _, t := range tokens {
		err := sender.Send(ctx, t.Token, title, body)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := devices.DeleteByToken(ctx, t.Token); err != nil {
				logger.Error("delete expired token", "member", t.MemberID, "error", err)
			} else {
				logger.Info("removed expired device token", "member", t.MemberID)
			}
		default:
			logger.Error("send notification", "member", t.MemberID, "title", title, "error", err)
		}
	}
	return sent
}
