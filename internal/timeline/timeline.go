// Package timeline groups occurrences into the day sections a household
// sees on its dashboard.
package timeline

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

const (
	timeLayout      = "3:04 PM"
	completedLayout = "Jan 2, 3:04 PM"
	subtitleLayout  = "Monday, January 2, 2006"
)

type Section struct {
	Date     time.Time `json:"date"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Rows     []Row     `json:"rows"`
}

type Row struct {
	ID                uuid.UUID    `json:"id"`
	TemplateID        uuid.UUID    `json:"templateID"`
	Title             string       `json:"title"`
	Time              string       `json:"time"`
	MemberName        string       `json:"memberName,omitempty"`
	MemberEmoji       string       `json:"memberEmoji,omitempty"`
	Status            model.Status `json:"status"`
	StatusDescription string       `json:"statusDescription"`
}

// Input is everything one build reads. Days are cut in Now's location.
type Input struct {
	Occurrences      []model.TaskOccurrence
	Templates        []model.TaskTemplate
	Members          []model.Member
	IncludeCompleted bool
	Now              time.Time
}

// BuildSections groups occurrences by local day, oldest day first, with rows
// ordered by due time. Only pending occurrences are shown unless
// includeCompleted is set.
func BuildSections(occurrences []model.TaskOccurrence, templates []model.TaskTemplate, members []model.Member, includeCompleted bool, now time.Time) []Section {
	sections, _ := build(context.Background(), Input{
		Occurrences:      occurrences,
		Templates:        templates,
		Members:          members,
		IncludeCompleted: includeCompleted,
		Now:              now,
	})
	return sections
}

func build(ctx context.Context, in Input) ([]Section, error) {
	loc := in.Now.Location()
	titles := make(map[uuid.UUID]string, len(in.Templates))
	for _, t := range in.Templates {
		titles[t.ID] = t.Title
	}
	byID := make(map[uuid.UUID]model.Member, len(in.Members))
	for _, m := range in.Members {
		byID[m.ID] = m
	}

	occs := make([]model.TaskOccurrence, 0, len(in.Occurrences))
	for _, o := range in.Occurrences {
		if in.IncludeCompleted || o.Status == model.StatusPending {
			occs = append(occs, o)
		}
	}
	slices.SortStableFunc(occs, func(a, b model.TaskOccurrence) int {
		return a.DueDate.Compare(b.DueDate)
	})

	today := startOfDay(in.Now)
	var sections []Section
	for i, o := range occs {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		due := o.DueDate.In(loc)
		day := startOfDay(due)
		if len(sections) == 0 || !sections[len(sections)-1].Date.Equal(day) {
			sections = append(sections, Section{
				Date:     day,
				Title:    sectionTitle(day, today),
				Subtitle: day.Format(subtitleLayout),
			})
		}

		row := Row{
			ID:                o.ID,
			TemplateID:        o.TemplateID,
			Title:             "Task",
			Time:              due.Format(timeLayout),
			Status:            o.Status,
			StatusDescription: statusDescription(o, loc),
		}
		if title, ok := titles[o.TemplateID]; ok {
			row.Title = title
		}
		if o.AssignedMemberID != nil {
			if m, ok := byID[*o.AssignedMemberID]; ok {
				row.MemberName = m.DisplayName
				row.MemberEmoji = m.EmojiSymbol
			}
		}
		s := &sections[len(sections)-1]
		s.Rows = append(s.Rows, row)
	}
	return sections, nil
}

func sectionTitle(day, today time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return day.Weekday().String()
	}
}

func statusDescription(o model.TaskOccurrence, loc *time.Location) string {
	switch o.Status {
	case model.StatusCompleted:
		if o.CompletedAt == nil {
			return "Completed"
		}
		return "Completed " + o.CompletedAt.In(loc).Format(completedLayout)
	case model.StatusSkipped:
		return "Skipped"
	default:
		return "Scheduled for " + o.DueDate.In(loc).Format(timeLayout)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
