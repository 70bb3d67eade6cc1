package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/store"
)

const (
	reminderLookahead = 31 * 24 * time.Hour
	sentRetention     = 30 * 24 * time.Hour
)

// ReminderScheduler periodically reminds assignees of pending occurrences
// once their template's lead time before the due date is reached.
type ReminderScheduler struct {
	mu        sync.RWMutex
	sender    Sender
	reminders *store.ReminderStore
	devices   *store.DeviceStore
	loc       *time.Location
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReminderScheduler creates a reminder scheduler.
func NewReminderScheduler(sender Sender, reminders *store.ReminderStore, devices *store.DeviceStore, loc *time.Location, logger *slog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		sender:    sender,
		reminders: reminders,
		devices:   devices,
		loc:       loc,
		logger:    logger.With("component", "reminders"),
		interval:  60 * time.Second,
		now:       time.Now,
	}
}

// Start begins the scheduler loop.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *ReminderScheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick sends every reminder that has come due and returns how many
// occurrences were reminded.
func (s *ReminderScheduler) tick(ctx context.Context) int {
	now := s.now().UTC()

	pending, err := s.reminders.PendingDueBetween(ctx, now, now.Add(reminderLookahead))
	if err != nil {
		s.logger.Error("list pending reminders", "error", err)
		return 0
	}

	reminded := 0
	for _, r := range pending {
		if now.Before(r.RemindAt()) {
			continue
		}
		// Moving the due date re-arms the reminder.
		refID := r.Occurrence.ID.String() + "@" + r.Occurrence.DueDate.UTC().Format(time.RFC3339)

		sent, err := s.reminders.WasSent(ctx, model.NotifTypeReminder, refID)
		if err != nil {
			s.logger.Error("check sent reminder", "error", err)
			continue
		}
		if sent {
			continue
		}

		tokens, err := s.devices.ListByMember(ctx, *r.Occurrence.AssignedMemberID)
		if err != nil {
			s.logger.Error("list device tokens", "error", err)
			continue
		}

		body := "Due " + r.Occurrence.DueDate.In(s.loc).Format(dueLayout)
		deliver(ctx, s.sender, s.devices, s.logger, tokens, r.TemplateTitle, body)

		if err := s.reminders.RecordSent(ctx, model.NotifTypeReminder, refID); err != nil {
			s.logger.Error("record sent reminder", "error", err)
		}
		reminded++
	}

	if err := s.reminders.CleanupSent(ctx, now.Add(-sentRetention)); err != nil {
		s.logger.Error("cleanup sent reminders", "error", err)
	}
	return reminded
}
