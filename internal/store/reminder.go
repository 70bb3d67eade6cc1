package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

// Reminder is a pending, assigned occurrence with the template fields a
// reminder needs.
type Reminder struct {
	Occurrence    model.TaskOccurrence
	TemplateTitle string
	LeadTimeHours int
}

// RemindAt is when the assignee should be reminded.
func (r Reminder) RemindAt() time.Time {
	return r.Occurrence.DueDate.Add(-time.Duration(r.LeadTimeHours) * time.Hour)
}

// ReminderStore backs lead-time reminders and their send-once bookkeeping.
type ReminderStore struct {
	q Querier
}

func NewReminderStore(q Querier) *ReminderStore {
	return &ReminderStore{q: q}
}

// PendingDueBetween returns assigned pending occurrences of active templates
// due in (from, to], soonest first.
func (s *ReminderStore) PendingDueBetween(ctx context.Context, from, to time.Time) ([]Reminder, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT o.id, o.template_id, o.due_date, o.status, o.assigned_member_id, o.scheduled_at,
		        o.completed_at, o.notes, o.sync_revision, t.title, t.lead_time_hours
		 FROM task_occurrences o
		 JOIN task_templates t ON t.id = o.template_id
		 WHERE o.status = ? AND o.assigned_member_id IS NOT NULL AND t.is_active = 1
		   AND o.due_date > ? AND o.due_date <= ?
		 ORDER BY o.due_date ASC`,
		string(model.StatusPending), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		var status string
		var assignee uuid.NullUUID
		o := &r.Occurrence
		if err := rows.Scan(&o.ID, &o.TemplateID, &o.DueDate, &status, &assignee, &o.ScheduledAt,
			&o.CompletedAt, &o.Notes, &o.SyncRevision, &r.TemplateTitle, &r.LeadTimeHours); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		o.Status = model.ParseStatus(status)
		if assignee.Valid {
			o.AssignedMemberID = &assignee.UUID
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// RecordSent records that a notification was sent (for dedup).
func (s *ReminderStore) RecordSent(ctx context.Context, notifType, refID string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (notification_type, reference_id, sent_at) VALUES (?, ?, ?)`,
		notifType, refID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *ReminderStore) WasSent(ctx context.Context, notifType, refID string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications WHERE notification_type = ? AND reference_id = ?`,
		notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes sent_notifications older than the given time.
func (s *ReminderStore) CleanupSent(ctx context.Context, before time.Time) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
