package scheduler

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/alternation"
	"github.com/dukerupert/choresync/internal/model"
)

type memStore struct {
	occurrences []model.TaskOccurrence
	completions []model.CompletionEvent
	templates   map[uuid.UUID]model.TaskTemplate
	insertErr   error
}

func newMemStore() *memStore {
	return &memStore{templates: make(map[uuid.UUID]model.TaskTemplate)}
}

func (m *memStore) OccurrencesForTemplate(_ context.Context, id uuid.UUID) ([]model.TaskOccurrence, error) {
	var out []model.TaskOccurrence
	for _, o := range m.occurrences {
		if o.TemplateID == id {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) CompletionsForOccurrences(_ context.Context, ids []uuid.UUID) ([]model.CompletionEvent, error) {
	var out []model.CompletionEvent
	for _, c := range m.completions {
		if slices.Contains(ids, c.OccurrenceID) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) InsertOccurrence(_ context.Context, occ model.TaskOccurrence) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.occurrences = append(m.occurrences, occ)
	return nil
}

func (m *memStore) SaveTemplate(_ context.Context, tmpl model.TaskTemplate) error {
	m.templates[tmpl.ID] = tmpl
	return nil
}

func (m *memStore) DeleteOccurrence(_ context.Context, id uuid.UUID) error {
	m.occurrences = slices.DeleteFunc(m.occurrences, func(o model.TaskOccurrence) bool { return o.ID == id })
	return nil
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

var clock = day(2023, 12, 30)

func newTestScheduler(store Store) *Scheduler {
	s := New(store, alternation.Engine{})
	s.now = func() time.Time { return clock }
	return s
}

func weeklyTemplate(anchor time.Time) *model.TaskTemplate {
	return &model.TaskTemplate{
		ID:            uuid.New(),
		Title:         "Bins",
		CadenceUnit:   model.CadenceWeeks,
		CadenceValue:  1,
		LeadTimeHours: 12,
		IsActive:      true,
		CreatedAt:     anchor.AddDate(0, 0, -10),
		StartDate:     &anchor,
		SyncRevision:  4,
	}
}

func twoMembers() []model.Member {
	return []model.Member{
		{ID: uuid.New(), DisplayName: "Blake"},
		{ID: uuid.New(), DisplayName: "Alex"},
	}
}

func sortedByDue(occs []model.TaskOccurrence) []model.TaskOccurrence {
	out := slices.Clone(occs)
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func TestWeeklyScenario(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))
	members := twoMembers()
	alex, blake := members[1], members[0]

	n, err := s.EnsureOccurrences(context.Background(), tmpl, members, day(2024, 1, 22))
	if err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	if n != 4 {
		t.Fatalf("created = %d, want 4", n)
	}

	occs := sortedByDue(store.occurrences)
	wantDates := []time.Time{day(2024, 1, 1), day(2024, 1, 8), day(2024, 1, 15), day(2024, 1, 22)}
	wantAssignees := []uuid.UUID{alex.ID, blake.ID, alex.ID, blake.ID}
	for i, occ := range occs {
		if !occ.DueDate.Equal(wantDates[i]) {
			t.Errorf("occ[%d].DueDate = %v, want %v", i, occ.DueDate, wantDates[i])
		}
		if occ.Status != model.StatusPending {
			t.Errorf("occ[%d].Status = %q, want pending", i, occ.Status)
		}
		if occ.AssignedMemberID == nil || *occ.AssignedMemberID != wantAssignees[i] {
			t.Errorf("occ[%d] assigned to %v, want %v", i, occ.AssignedMemberID, wantAssignees[i])
		}
		if occ.SyncRevision != 0 {
			t.Errorf("occ[%d].SyncRevision = %d, want 0", i, occ.SyncRevision)
		}
		if !occ.ScheduledAt.Equal(clock) {
			t.Errorf("occ[%d].ScheduledAt = %v, want %v", i, occ.ScheduledAt, clock)
		}
	}

	if tmpl.SyncRevision != 0 {
		t.Errorf("template SyncRevision = %d, want 0", tmpl.SyncRevision)
	}
	if tmpl.LastGeneratedDate == nil || !tmpl.LastGeneratedDate.Equal(day(2024, 1, 22)) {
		t.Errorf("LastGeneratedDate = %v, want 2024-01-22", tmpl.LastGeneratedDate)
	}
	if _, ok := store.templates[tmpl.ID]; !ok {
		t.Error("template was not saved")
	}
}

func TestIdempotentExpansion(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))
	horizon := day(2024, 2, 1)

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, twoMembers(), horizon); err != nil {
		t.Fatalf("first EnsureOccurrences: %v", err)
	}
	before := len(store.occurrences)
	delete(store.templates, tmpl.ID)

	n, err := s.EnsureOccurrences(context.Background(), tmpl, twoMembers(), horizon)
	if err != nil {
		t.Fatalf("second EnsureOccurrences: %v", err)
	}
	if n != 0 || len(store.occurrences) != before {
		t.Errorf("second run created %d (total %d, was %d)", n, len(store.occurrences), before)
	}
	if _, ok := store.templates[tmpl.ID]; ok {
		t.Error("template saved on a no-op run")
	}
}

func TestNoDuplicateDueDates(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := &model.TaskTemplate{
		ID:           uuid.New(),
		CadenceUnit:  model.CadenceDays,
		CadenceValue: 3,
		IsActive:     true,
		CreatedAt:    day(2024, 1, 1),
	}
	members := twoMembers()

	horizons := []time.Time{day(2024, 1, 5), day(2024, 1, 5), day(2024, 1, 20), day(2024, 1, 3), day(2024, 2, 15)}
	for _, h := range horizons {
		if _, err := s.EnsureOccurrences(context.Background(), tmpl, members, h); err != nil {
			t.Fatalf("EnsureOccurrences(%v): %v", h, err)
		}
	}

	seen := make(map[int64]bool)
	for _, occ := range store.occurrences {
		k := occ.DueDate.UnixNano()
		if seen[k] {
			t.Errorf("duplicate due date %v", occ.DueDate)
		}
		seen[k] = true
	}
	// Jan 1 through Feb 15 every three days.
	if len(seen) != 16 {
		t.Errorf("distinct due dates = %d, want 16", len(seen))
	}
}

func TestMonthlyClampsToMonthEnd(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	anchor := day(2024, 1, 31)
	tmpl := weeklyTemplate(anchor)
	tmpl.CadenceUnit = model.CadenceMonths

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, twoMembers(), day(2024, 4, 30)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	occs := sortedByDue(store.occurrences)
	want := []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 29), day(2024, 4, 29)}
	if len(occs) != len(want) {
		t.Fatalf("len = %d, want %d", len(occs), len(want))
	}
	for i := range want {
		if !occs[i].DueDate.Equal(want[i]) {
			t.Errorf("occ[%d].DueDate = %v, want %v", i, occs[i].DueDate, want[i])
		}
	}
}

func TestSkipsInactiveAndInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.TaskTemplate)
	}{
		{"inactive", func(t *model.TaskTemplate) { t.IsActive = false }},
		{"zero cadence", func(t *model.TaskTemplate) { t.CadenceValue = 0 }},
		{"negative cadence", func(t *model.TaskTemplate) { t.CadenceValue = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			s := newTestScheduler(store)
			tmpl := weeklyTemplate(day(2024, 1, 1))
			tt.mutate(tmpl)

			n, err := s.EnsureOccurrences(context.Background(), tmpl, twoMembers(), day(2024, 3, 1))
			if err != nil {
				t.Fatalf("EnsureOccurrences: %v", err)
			}
			if n != 0 || len(store.occurrences) != 0 {
				t.Errorf("created %d occurrences, want 0", n)
			}
		})
	}
}

func TestAnchorAfterHorizon(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 6, 1))

	n, err := s.EnsureOccurrences(context.Background(), tmpl, twoMembers(), day(2024, 5, 1))
	if err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	if n != 0 {
		t.Errorf("created = %d, want 0", n)
	}
}

func TestNoMembersLeavesUnassigned(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, nil, day(2024, 1, 8)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	for _, occ := range store.occurrences {
		if occ.AssignedMemberID != nil {
			t.Errorf("occurrence %v assigned without members", occ.DueDate)
		}
	}
}

func TestHistoryRotatesFirstAssignment(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))
	members := twoMembers()
	alex, blake := members[1], members[0]

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, members, day(2024, 1, 1)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	first := store.occurrences[0]
	if *first.AssignedMemberID != alex.ID {
		t.Fatalf("first assignee = %v, want Alex", *first.AssignedMemberID)
	}

	// Alex completes it; the next occurrence goes to Blake even though
	// both now carry no pending load.
	store.occurrences[0].Status = model.StatusCompleted
	store.completions = append(store.completions, model.CompletionEvent{
		ID: uuid.New(), OccurrenceID: first.ID, MemberID: alex.ID, Timestamp: day(2024, 1, 1),
	})

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, members, day(2024, 1, 8)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	occs := sortedByDue(store.occurrences)
	if len(occs) != 2 {
		t.Fatalf("len = %d, want 2", len(occs))
	}
	if *occs[1].AssignedMemberID != blake.ID {
		t.Errorf("second assignee = %v, want Blake", *occs[1].AssignedMemberID)
	}
}

func TestInsertErrorStops(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("disk full")
	s := newTestScheduler(store)

	_, err := s.EnsureOccurrences(context.Background(), weeklyTemplate(day(2024, 1, 1)), twoMembers(), day(2024, 2, 1))
	if err == nil || !errors.Is(err, store.insertErr) {
		t.Errorf("err = %v, want wrapped insert error", err)
	}
}

func TestPurgePendingRestartsFromNewAnchor(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))
	members := twoMembers()

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, members, day(2024, 1, 22)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	occs := sortedByDue(store.occurrences)
	for i := range store.occurrences {
		if store.occurrences[i].ID == occs[0].ID {
			store.occurrences[i].Status = model.StatusCompleted
		}
	}

	newStart := day(2024, 2, 3)
	tmpl.StartDate = &newStart
	purged, err := PurgePending(context.Background(), store, tmpl)
	if err != nil {
		t.Fatalf("PurgePending: %v", err)
	}
	if purged != 3 {
		t.Errorf("purged = %d, want 3", purged)
	}
	if len(store.occurrences) != 1 || store.occurrences[0].Status != model.StatusCompleted {
		t.Fatalf("remaining = %+v, want the completed occurrence only", store.occurrences)
	}
	if tmpl.LastGeneratedDate != nil {
		t.Error("LastGeneratedDate not cleared")
	}

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, members, day(2024, 2, 17)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	occs = sortedByDue(store.occurrences)
	want := []time.Time{day(2024, 1, 1), day(2024, 2, 3), day(2024, 2, 10), day(2024, 2, 17)}
	if len(occs) != len(want) {
		t.Fatalf("len = %d, want %d", len(occs), len(want))
	}
	for i := range want {
		if !occs[i].DueDate.Equal(want[i]) {
			t.Errorf("occ[%d].DueDate = %v, want %v", i, occs[i].DueDate, want[i])
		}
	}
}

func TestIndependentExpansionsAgreeOnIDs(t *testing.T) {
	members := twoMembers()
	tmpl := weeklyTemplate(day(2024, 1, 1))
	horizon := day(2024, 1, 22)

	phone, tablet := newMemStore(), newMemStore()
	phoneTmpl, tabletTmpl := *tmpl, *tmpl
	if _, err := newTestScheduler(phone).EnsureOccurrences(context.Background(), &phoneTmpl, members, horizon); err != nil {
		t.Fatalf("phone: %v", err)
	}
	if _, err := newTestScheduler(tablet).EnsureOccurrences(context.Background(), &tabletTmpl, members, horizon); err != nil {
		t.Fatalf("tablet: %v", err)
	}

	a, b := sortedByDue(phone.occurrences), sortedByDue(tablet.occurrences)
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("created %d and %d, want 4 each", len(a), len(b))
	}
	seen := make(map[uuid.UUID]bool)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("due %v: ids %s and %s differ", a[i].DueDate, a[i].ID, b[i].ID)
		}
		if a[i].ID != OccurrenceID(tmpl.ID, a[i].DueDate) {
			t.Errorf("due %v: id not derived from template and due date", a[i].DueDate)
		}
		seen[a[i].ID] = true
	}
	if len(seen) != 4 {
		t.Errorf("distinct ids = %d, want 4", len(seen))
	}
}

func TestMovedOccurrenceIsNotRecreated(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store)
	tmpl := weeklyTemplate(day(2024, 1, 1))

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, nil, day(2024, 1, 8)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	// Pull the second occurrence back before the anchor; its id still names
	// the 8th, which expansion from the 1st reaches again.
	for i := range store.occurrences {
		if store.occurrences[i].DueDate.Equal(day(2024, 1, 8)) {
			store.occurrences[i].DueDate = day(2023, 12, 29)
		}
	}

	if _, err := s.EnsureOccurrences(context.Background(), tmpl, nil, day(2024, 1, 15)); err != nil {
		t.Fatalf("EnsureOccurrences: %v", err)
	}
	var dues []time.Time
	for _, occ := range sortedByDue(store.occurrences) {
		dues = append(dues, occ.DueDate)
	}
	want := []time.Time{day(2023, 12, 29), day(2024, 1, 1), day(2024, 1, 15)}
	if !slices.EqualFunc(dues, want, time.Time.Equal) {
		t.Errorf("due dates = %v, want %v", dues, want)
	}
}
