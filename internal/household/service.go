// Package household applies local edits to a device's household.
//
// Every mutation is the local half of a two-phase write: it changes the
// local store, marks touched records dirty, re-expands occurrences and
// saves. Replicating the change is a separate call to the sync coordinator.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/alternation"
	"github.com/dukerupert/choresync/internal/localstore"
	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/recurrence"
	"github.com/dukerupert/choresync/internal/scheduler"
)

const DefaultHorizonDays = 60

var (
	ErrNotFound   = errors.New("not found")
	ErrLastMember = errors.New("cannot remove the last member")
	ErrInvalid    = errors.New("invalid input")
)

// MemberInput holds the editable fields of a member.
type MemberInput struct {
	DisplayName    string
	EmojiSymbol    string
	AccentColorHex string
	IsSelf         bool
}

// TemplateInput holds the editable fields of a task template.
type TemplateInput struct {
	Title         string
	Details       *string
	Cadence       recurrence.Cadence
	LeadTimeHours int
	StartDate     time.Time
}

type Service struct {
	store       *localstore.Store
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
	now         func() time.Time
	horizonDays int
}

// New creates a Service. horizonDays <= 0 uses DefaultHorizonDays.
func New(store *localstore.Store, engine alternation.Engine, horizonDays int, logger *slog.Logger) *Service {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Service{
		store:       store,
		scheduler:   scheduler.New(store, engine),
		logger:      logger.With("component", "household"),
		now:         time.Now,
		horizonDays: horizonDays,
	}
}

// SetClock replaces the time source for timestamps and the expansion horizon.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.scheduler.SetClock(now)
}

// Store returns the underlying local store for read access.
func (s *Service) Store() *localstore.Store {
	return s.store
}

// SeedIfEmpty creates the default two-person household when no member exists.
func (s *Service) SeedIfEmpty(ctx context.Context) (bool, error) {
	if len(s.store.Members()) > 0 {
		return false, nil
	}
	now := s.now()
	s.store.UpsertMember(model.Member{
		ID: uuid.New(), DisplayName: "You", EmojiSymbol: "🧑", AccentColorHex: "#5B8DEF",
		IsSelf: true, CreatedAt: now, UpdatedAt: now,
	})
	// Partner sorts after You by creation time.
	later := now.Add(time.Millisecond)
	s.store.UpsertMember(model.Member{
		ID: uuid.New(), DisplayName: "Partner", EmojiSymbol: "❤️", AccentColorHex: "#EF6F5B",
		CreatedAt: later, UpdatedAt: later,
	})
	return true, s.commit(ctx, "seed", false)
}

func (s *Service) AddMember(ctx context.Context, in MemberInput) (model.Member, error) {
	if err := validateMember(in); err != nil {
		return model.Member{}, err
	}
	now := s.now()
	m := model.Member{
		ID:             uuid.New(),
		DisplayName:    strings.TrimSpace(in.DisplayName),
		EmojiSymbol:    in.EmojiSymbol,
		AccentColorHex: in.AccentColorHex,
		IsSelf:         in.IsSelf,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.IsSelf {
		s.demoteSelf(m.ID, now)
	}
	s.store.UpsertMember(m)
	return m, s.commit(ctx, "member-add", false)
}

// UpdateMember edits a member. Promoting a member to isSelf demotes every
// other self member and marks them dirty.
func (s *Service) UpdateMember(ctx context.Context, id uuid.UUID, in MemberInput) (model.Member, error) {
	if err := validateMember(in); err != nil {
		return model.Member{}, err
	}
	m, ok := s.store.Member(id)
	if !ok {
		return model.Member{}, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	now := s.now()
	m.DisplayName = strings.TrimSpace(in.DisplayName)
	m.EmojiSymbol = in.EmojiSymbol
	m.AccentColorHex = in.AccentColorHex
	m.IsSelf = in.IsSelf
	m.UpdatedAt = now
	m.SyncRevision = 0
	if m.IsSelf {
		s.demoteSelf(m.ID, now)
	}
	s.store.UpsertMember(m)
	return m, s.commit(ctx, "member-update", false)
}

// RemoveMember deletes a member locally. The last member cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.store.Member(id); !ok {
		return fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if len(s.store.Members()) <= 1 {
		return ErrLastMember
	}
	s.store.DeleteMember(id)
	return s.commit(ctx, "member-remove", false)
}

func (s *Service) demoteSelf(except uuid.UUID, now time.Time) {
	for _, other := range s.store.Members() {
		if other.ID == except || !other.IsSelf {
			continue
		}
		other.IsSelf = false
		other.UpdatedAt = now
		other.SyncRevision = 0
		s.store.UpsertMember(other)
	}
}

func (s *Service) AddTemplate(ctx context.Context, in TemplateInput) (model.TaskTemplate, error) {
	if err := validateTemplate(in); err != nil {
		return model.TaskTemplate{}, err
	}
	now := s.now()
	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	t := model.TaskTemplate{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(in.Title),
		Details:       in.Details,
		CadenceUnit:   in.Cadence.Unit,
		CadenceValue:  in.Cadence.Value,
		LeadTimeHours: in.LeadTimeHours,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
		StartDate:     &start,
	}
	s.store.UpsertTemplate(t)
	if err := s.commit(ctx, "template-add", true); err != nil {
		return t, err
	}
	t, _ = s.store.Template(t.ID)
	return t, nil
}

// UpdateTemplate edits a template. Moving the start date purges its pending
// occurrences so expansion restarts from the new anchor.
func (s *Service) UpdateTemplate(ctx context.Context, id uuid.UUID, in TemplateInput, isActive bool) (model.TaskTemplate, error) {
	if err := validateTemplate(in); err != nil {
		return model.TaskTemplate{}, err
	}
	t, ok := s.store.Template(id)
	if !ok {
		return model.TaskTemplate{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	previousStart := t.Anchor()
	start := in.StartDate
	if start.IsZero() {
		start = previousStart
	}

	t.Title = strings.TrimSpace(in.Title)
	t.Details = in.Details
	t.CadenceUnit = in.Cadence.Unit
	t.CadenceValue = in.Cadence.Value
	t.LeadTimeHours = in.LeadTimeHours
	t.IsActive = isActive
	t.UpdatedAt = s.now()
	t.StartDate = &start
	t.SyncRevision = 0

	if !start.Equal(previousStart) {
		purged, err := scheduler.PurgePending(ctx, s.store, &t)
		if err != nil {
			return t, err
		}
		s.logger.Debug("start date moved, purged pending occurrences", "template", t.ID, "purged", purged)
	} else {
		s.store.UpsertTemplate(t)
	}

	if err := s.commit(ctx, "template-update", true); err != nil {
		return t, err
	}
	t, _ = s.store.Template(t.ID)
	return t, nil
}

// ArchiveTemplate deactivates a template, keeping everything else.
func (s *Service) ArchiveTemplate(ctx context.Context, id uuid.UUID) (model.TaskTemplate, error) {
	t, ok := s.store.Template(id)
	if !ok {
		return model.TaskTemplate{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return s.UpdateTemplate(ctx, id, TemplateInput{
		Title:         t.Title,
		Details:       t.Details,
		Cadence:       recurrence.Of(&t),
		LeadTimeHours: t.LeadTimeHours,
		StartDate:     t.Anchor(),
	}, false)
}

// DeleteTemplate removes a template with its occurrences and their completions.
func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.store.Template(id); !ok {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	occIDs := make(map[uuid.UUID]bool)
	for _, o := range s.store.Occurrences(func(o model.TaskOccurrence) bool { return o.TemplateID == id }) {
		occIDs[o.ID] = true
	}
	s.store.DeleteCompletions(func(c model.CompletionEvent) bool { return occIDs[c.OccurrenceID] })
	s.store.DeleteOccurrences(func(o model.TaskOccurrence) bool { return o.TemplateID == id })
	s.store.DeleteTemplate(id)
	return s.commit(ctx, "template-delete", false)
}

// MarkOccurrence sets an occurrence's status. The transition to completed
// records a completion by the assignee; completing an occurrence that is
// already completed changes nothing. Any other status clears completedAt.
func (s *Service) MarkOccurrence(ctx context.Context, id uuid.UUID, status model.Status, notes *string) (model.TaskOccurrence, error) {
	o, ok := s.store.Occurrence(id)
	if !ok {
		return model.TaskOccurrence{}, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	if status == model.StatusCompleted && o.Status == model.StatusCompleted {
		return o, nil
	}
	now := s.now()
	o.Status = status
	o.SyncRevision = 0

	if status == model.StatusCompleted {
		if o.AssignedMemberID != nil {
			if _, known := s.store.Member(*o.AssignedMemberID); known {
				s.store.UpsertCompletion(model.CompletionEvent{
					ID:           uuid.New(),
					OccurrenceID: o.ID,
					MemberID:     *o.AssignedMemberID,
					Timestamp:    now,
					Notes:        notes,
				})
			}
		}
		o.CompletedAt = &now
	} else {
		o.CompletedAt = nil
	}

	s.store.UpsertOccurrence(o)
	return o, s.commit(ctx, "occurrence-update", true)
}

// Assign changes an occurrence's assignee. A nil member unassigns it.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, memberID *uuid.UUID) (model.TaskOccurrence, error) {
	o, ok := s.store.Occurrence(id)
	if !ok {
		return model.TaskOccurrence{}, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	if memberID != nil {
		if _, known := s.store.Member(*memberID); !known {
			return model.TaskOccurrence{}, fmt.Errorf("member %s: %w", *memberID, ErrNotFound)
		}
	}
	o.AssignedMemberID = memberID
	o.SyncRevision = 0
	s.store.UpsertOccurrence(o)
	return o, s.commit(ctx, "assignment-change", true)
}

// UpdateDueDate moves an occurrence. Moving it to its current date is a no-op.
func (s *Service) UpdateDueDate(ctx context.Context, id uuid.UUID, due time.Time) (model.TaskOccurrence, error) {
	o, ok := s.store.Occurrence(id)
	if !ok {
		return model.TaskOccurrence{}, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	if o.DueDate.Equal(due) {
		return o, nil
	}
	o.DueDate = due
	o.SyncRevision = 0
	s.store.UpsertOccurrence(o)
	return o, s.commit(ctx, "occurrence-due-date", true)
}

func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) (model.TaskOccurrence, error) {
	o, ok := s.store.Occurrence(id)
	if !ok {
		return model.TaskOccurrence{}, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	o.Notes = notes
	o.SyncRevision = 0
	s.store.UpsertOccurrence(o)
	return o, s.commit(ctx, "occurrence-notes", false)
}

// GenerateUpcoming expands every active template through the horizon and
// saves. It returns the number of occurrences created.
func (s *Service) GenerateUpcoming(ctx context.Context) (int, error) {
	created, err := s.generate(ctx)
	if err != nil {
		return created, err
	}
	if created == 0 {
		return 0, nil
	}
	return created, s.commit(ctx, "generate", false)
}

func (s *Service) generate(ctx context.Context) (int, error) {
	horizon := s.now().AddDate(0, 0, s.horizonDays)
	members := s.store.Members()

	total := 0
	for _, t := range s.store.Templates(func(t model.TaskTemplate) bool { return t.IsActive }) {
		n, err := s.scheduler.EnsureOccurrences(ctx, &t, members, horizon)
		total += n
		if err != nil {
			return total, fmt.Errorf("expand %q: %w", t.Title, err)
		}
	}
	return total, nil
}

// commit finishes the local phase of a mutation.
func (s *Service) commit(ctx context.Context, op string, regenerate bool) error {
	if regenerate {
		if n, err := s.generate(ctx); err != nil {
			s.logger.Error("expand occurrences", "op", op, "error", err)
		} else if n > 0 {
			s.logger.Debug("expanded occurrences", "op", op, "created", n)
		}
	}
	if err := s.store.Save(); err != nil {
		s.logger.Error("save local store", "op", op, "error", err)
		return fmt.Errorf("%s: save local store: %w", op, err)
	}
	return nil
}

func validateMember(in MemberInput) error {
	if strings.TrimSpace(in.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalid)
	}
	return nil
}

func validateTemplate(in TemplateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !in.Cadence.Valid() {
		return fmt.Errorf("%w: cadence must repeat at least once", ErrInvalid)
	}
	if in.LeadTimeHours < 0 {
		return fmt.Errorf("%w: lead time cannot be negative", ErrInvalid)
	}
	return nil
}
