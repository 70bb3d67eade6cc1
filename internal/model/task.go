package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskTemplate struct {
	ID                uuid.UUID   `json:"id"`
	Title             string      `json:"title"`
	Details           *string     `json:"details"`
	CadenceUnit       CadenceUnit `json:"cadenceUnitRaw"`
	CadenceValue      int         `json:"cadenceValue"`
	LeadTimeHours     int         `json:"leadTimeHours"`
	IsActive          bool        `json:"isActive"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	StartDate         *time.Time  `json:"startDate"`
	LastGeneratedDate *time.Time  `json:"lastGeneratedDate"`
	SyncRevision      int64       `json:"syncRevision"`
}

// Anchor is the first instant the template recurs from.
func (t *TaskTemplate) Anchor() time.Time {
	if t.StartDate != nil {
		return *t.StartDate
	}
	return t.CreatedAt
}

type TaskOccurrence struct {
	ID               uuid.UUID  `json:"id"`
	TemplateID       uuid.UUID  `json:"templateID"`
	DueDate          time.Time  `json:"dueDate"`
	Status           Status     `json:"statusRaw"`
	AssignedMemberID *uuid.UUID `json:"assignedMemberID"`
	ScheduledAt      time.Time  `json:"scheduledAt"`
	CompletedAt      *time.Time `json:"completedAt"`
	Notes            *string    `json:"notes"`
	SyncRevision     int64      `json:"syncRevision"`
}

// CompletionEvent is append-only.
type CompletionEvent struct {
	ID           uuid.UUID `json:"id"`
	OccurrenceID uuid.UUID `json:"occurrenceID"`
	MemberID     uuid.UUID `json:"memberID"`
	Timestamp    time.Time `json:"timestamp"`
	Notes        *string   `json:"notes"`
	SyncRevision int64     `json:"syncRevision"`
}

// SameMember reports whether two optional member ids refer to the same member.
func SameMember(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
