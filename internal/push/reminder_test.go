package push

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/store"
)

func TestReminderTick(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	templates := store.NewTemplateStore(db)
	occurrences := store.NewOccurrenceStore(db)
	devices := store.NewDeviceStore(db)

	now := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	alex := uuid.New()
	if _, err := devices.Upsert(ctx, alex, "alex-phone"); err != nil {
		t.Fatalf("upsert device: %v", err)
	}

	tmpl := model.TaskTemplate{
		ID: uuid.New(), Title: "Bins", CadenceUnit: model.CadenceWeeks, CadenceValue: 1,
		LeadTimeHours: 12, IsActive: true, CreatedAt: now, UpdatedAt: now, SyncRevision: 1,
	}
	if err := templates.Insert(ctx, tmpl); err != nil {
		t.Fatalf("insert template: %v", err)
	}

	occ := func(due time.Time, status model.Status, assignee *uuid.UUID) model.TaskOccurrence {
		o := model.TaskOccurrence{
			ID: uuid.New(), TemplateID: tmpl.ID, DueDate: due, Status: status,
			AssignedMemberID: assignee, ScheduledAt: now, SyncRevision: 2,
		}
		if err := occurrences.Insert(ctx, o); err != nil {
			t.Fatalf("insert occurrence: %v", err)
		}
		return o
	}
	// Inside the lead time.
	occ(now.Add(6*time.Hour), model.StatusPending, &alex)
	// Lead time not reached yet.
	occ(now.Add(30*time.Hour), model.StatusPending, &alex)
	occ(now.Add(2*time.Hour), model.StatusCompleted, &alex)
	occ(now.Add(3*time.Hour), model.StatusPending, nil)
	// Already overdue.
	occ(now.Add(-1*time.Hour), model.StatusPending, &alex)

	sender := &fakeSender{}
	s := NewReminderScheduler(sender, store.NewReminderStore(db), devices, time.UTC, discardLogger())
	s.now = func() time.Time { return now }

	if n := s.tick(ctx); n != 1 {
		t.Errorf("first tick reminded %d, want 1", n)
	}
	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0].title != "Bins" || msgs[0].body != "Due Jan 8, 2024 at 2:00 PM" {
		t.Errorf("messages = %+v", msgs)
	}

	if n := s.tick(ctx); n != 0 {
		t.Errorf("second tick reminded %d, want 0", n)
	}

	s.now = func() time.Time { return now.Add(20 * time.Hour) }
	if n := s.tick(ctx); n != 1 {
		t.Errorf("later tick reminded %d, want 1", n)
	}
}
