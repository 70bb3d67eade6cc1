package replication

import (
	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

type JobKind string

const (
	JobAssignment JobKind = "assignment"
	JobCompletion JobKind = "completion"
)

// Job is a notification owed for a merged occurrence change.
type Job struct {
	Kind JobKind
	// MemberID is the new assignee for assignment jobs and the assignee at
	// the time of the change, if any, for completion jobs.
	MemberID      *uuid.UUID
	Occurrence    model.TaskOccurrence
	TemplateTitle string
}

// Notifier receives jobs after the merge that produced them has committed.
// Enqueue must not block.
type Notifier interface {
	Enqueue(jobs []Job)
}

// Broadcaster announces that the global revision moved.
type Broadcaster interface {
	BroadcastRevision(rev int64)
}

// diffOccurrence returns the jobs implied by replacing prev with next.
func diffOccurrence(prev, next model.TaskOccurrence, templateTitle string) []Job {
	var jobs []Job
	if next.AssignedMemberID != nil && !model.SameMember(prev.AssignedMemberID, next.AssignedMemberID) {
		jobs = append(jobs, Job{
			Kind:          JobAssignment,
			MemberID:      next.AssignedMemberID,
			Occurrence:    next,
			TemplateTitle: templateTitle,
		})
	}
	if prev.Status != next.Status && next.Status != model.StatusPending {
		jobs = append(jobs, Job{
			Kind:          JobCompletion,
			MemberID:      next.AssignedMemberID,
			Occurrence:    next,
			TemplateTitle: templateTitle,
		})
	}
	return jobs
}
