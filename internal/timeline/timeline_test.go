package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

// Monday morning.
var now = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func occurrence(tmpl uuid.UUID, due time.Time, status model.Status, member *uuid.UUID) model.TaskOccurrence {
	return model.TaskOccurrence{ID: uuid.New(), TemplateID: tmpl, DueDate: due, Status: status, AssignedMemberID: member}
}

func TestBuildSections(t *testing.T) {
	trash := model.TaskTemplate{ID: uuid.New(), Title: "Trash"}
	alex := model.Member{ID: uuid.New(), DisplayName: "Alex", EmojiSymbol: "🦊"}

	occs := []model.TaskOccurrence{
		occurrence(trash.ID, now.AddDate(0, 0, 3).Add(2*time.Hour), model.StatusPending, nil),
		occurrence(trash.ID, now.Add(9*time.Hour), model.StatusPending, &alex.ID),
		occurrence(trash.ID, now.Add(time.Hour), model.StatusPending, &alex.ID),
		occurrence(uuid.New(), now.AddDate(0, 0, 1), model.StatusPending, nil),
		occurrence(trash.ID, now.Add(-2*time.Hour), model.StatusSkipped, nil),
	}

	got := BuildSections(occs, []model.TaskTemplate{trash}, []model.Member{alex}, false, now)

	type summary struct {
		Title, Subtitle string
		Rows            []string
	}
	var sums []summary
	for _, s := range got {
		sum := summary{Title: s.Title, Subtitle: s.Subtitle}
		for _, r := range s.Rows {
			sum.Rows = append(sum.Rows, r.Title+" "+r.Time+" "+r.MemberName+" "+r.StatusDescription)
		}
		sums = append(sums, sum)
	}
	want := []summary{
		{"Today", "Monday, January 6, 2025", []string{
			"Trash 9:00 AM Alex Scheduled for 9:00 AM",
			"Trash 5:00 PM Alex Scheduled for 5:00 PM",
		}},
		{"Tomorrow", "Tuesday, January 7, 2025", []string{"Task 8:00 AM  Scheduled for 8:00 AM"}},
		{"Thursday", "Thursday, January 9, 2025", []string{"Trash 10:00 AM  Scheduled for 10:00 AM"}},
	}
	if diff := cmp.Diff(want, sums); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if got[0].Rows[0].MemberEmoji != "🦊" {
		t.Errorf("emoji = %q", got[0].Rows[0].MemberEmoji)
	}
}

func TestBuildSectionsIncludeCompleted(t *testing.T) {
	tmpl := uuid.New()
	done := occurrence(tmpl, now.Add(-3*time.Hour), model.StatusCompleted, nil)
	completedAt := time.Date(2025, 1, 6, 7, 30, 0, 0, time.UTC)
	done.CompletedAt = &completedAt
	legacy := occurrence(tmpl, now.Add(-2*time.Hour), model.StatusCompleted, nil)
	skipped := occurrence(tmpl, now.Add(-time.Hour), model.StatusSkipped, nil)

	got := BuildSections([]model.TaskOccurrence{skipped, legacy, done}, nil, nil, true, now)
	if len(got) != 1 || len(got[0].Rows) != 3 {
		t.Fatalf("sections = %+v", got)
	}
	var descs []string
	for _, r := range got[0].Rows {
		descs = append(descs, r.StatusDescription)
	}
	want := []string{"Completed Jan 6, 7:30 AM", "Completed", "Skipped"}
	if diff := cmp.Diff(want, descs); diff != "" {
		t.Errorf("descriptions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSectionsUsesNowLocation(t *testing.T) {
	// 23:30 UTC on Monday is already Tuesday in UTC+2.
	loc := time.FixedZone("UTC+2", 2*60*60)
	due := time.Date(2025, 1, 6, 23, 30, 0, 0, time.UTC)
	got := BuildSections([]model.TaskOccurrence{occurrence(uuid.New(), due, model.StatusPending, nil)}, nil, nil, false, now.In(loc))

	if len(got) != 1 || got[0].Title != "Tomorrow" || got[0].Rows[0].Time != "1:30 AM" {
		t.Errorf("sections = %+v", got)
	}
}

func TestBuildSectionsEmpty(t *testing.T) {
	if got := BuildSections(nil, nil, nil, true, now); len(got) != 0 {
		t.Errorf("sections = %+v, want none", got)
	}
}

func TestRebuilderPublishes(t *testing.T) {
	r := NewRebuilder()
	if _, seq := r.Latest(); seq != 0 {
		t.Fatalf("initial seq = %d, want 0", seq)
	}

	in := Input{Occurrences: []model.TaskOccurrence{occurrence(uuid.New(), now, model.StatusPending, nil)}, Now: now}
	sections, err := r.Rebuild(context.Background(), in)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	latest, seq := r.Latest()
	if seq != 1 || len(latest) != 1 || len(sections) != 1 {
		t.Errorf("latest = %+v at %d", latest, seq)
	}
}

func TestRebuilderSupersedes(t *testing.T) {
	r := NewRebuilder()
	started := make(chan struct{})
	r.build = func(ctx context.Context, in Input) ([]Section, error) {
		if in.IncludeCompleted {
			return []Section{{Title: "second"}}, nil
		}
		close(started)
		<-ctx.Done()
		return []Section{{Title: "first"}}, nil
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(context.Background(), Input{})
		firstErr <- err
	}()
	<-started

	got, err := r.Rebuild(context.Background(), Input{IncludeCompleted: true})
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if got[0].Title != "second" {
		t.Errorf("second result = %q", got[0].Title)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("first rebuild error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first rebuild was not cancelled")
	}

	latest, seq := r.Latest()
	if seq != 2 || latest[0].Title != "second" {
		t.Errorf("latest = %+v at %d, want second at 2", latest, seq)
	}
}

func TestRebuilderCancel(t *testing.T) {
	r := NewRebuilder()
	started := make(chan struct{})
	r.build = func(ctx context.Context, in Input) ([]Section, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	errs := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(context.Background(), Input{})
		errs <- err
	}()
	<-started
	r.Cancel()

	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if _, seq := r.Latest(); seq != 0 {
		t.Errorf("published seq = %d, want 0", seq)
	}
}
