package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/model"
)

// NewOccurrenceCommand creates the occurrence command group.
func NewOccurrenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "occurrence",
		Aliases: []string{"occ"},
		Short:   "Act on a single scheduled occurrence",
		Long: `Act on a single scheduled occurrence. Occurrences are referenced by id or
by the short id shown in the timeline.`,
	}
	cmd.AddCommand(newMarkCommand(rootOpts, "complete", "Mark an occurrence done by its assignee", model.StatusCompleted))
	cmd.AddCommand(newMarkCommand(rootOpts, "skip", "Skip an occurrence", model.StatusSkipped))
	cmd.AddCommand(newMarkCommand(rootOpts, "reset", "Put an occurrence back to pending", model.StatusPending))
	cmd.AddCommand(newAssignCommand(rootOpts))
	cmd.AddCommand(newDueCommand(rootOpts))
	cmd.AddCommand(newNotesCommand(rootOpts))
	return cmd
}

func newMarkCommand(rootOpts *RootOptions, use, short string, status model.Status) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   use + " <occurrence>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			o, err := s.resolveOccurrence(args[0])
			if err != nil {
				return err
			}
			updated, err := s.svc.MarkOccurrence(cmd.Context(), o.ID, status, optional(notes))
			if err != nil {
				return err
			}
			s.replicate(cmd, "occurrence-"+use)
			return rootOpts.output(cmd).Success(s.occurrenceResult(updated))
		},
	}
	if status == model.StatusCompleted {
		cmd.Flags().StringVar(&notes, "notes", "", "note stored with the completion")
	}
	return cmd
}

func newAssignCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <occurrence> <member|none>",
		Short: "Change who an occurrence is assigned to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			o, err := s.resolveOccurrence(args[0])
			if err != nil {
				return err
			}
			var memberID *uuid.UUID
			if !strings.EqualFold(args[1], "none") {
				m, err := s.resolveMember(args[1])
				if err != nil {
					return err
				}
				memberID = &m.ID
			}
			updated, err := s.svc.Assign(cmd.Context(), o.ID, memberID)
			if err != nil {
				return err
			}
			s.replicate(cmd, "assignment-change")
			return rootOpts.output(cmd).Success(s.occurrenceResult(updated))
		},
	}
}

func newDueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due <occurrence> <YYYY-MM-DD[ HH:MM]>",
		Short: "Move an occurrence to another time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseWhen(args[1], time.Now())
			if err != nil {
				return err
			}
			if due.IsZero() {
				return fmt.Errorf("a due time is required")
			}
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			o, err := s.resolveOccurrence(args[0])
			if err != nil {
				return err
			}
			updated, err := s.svc.UpdateDueDate(cmd.Context(), o.ID, due)
			if err != nil {
				return err
			}
			s.replicate(cmd, "occurrence-due-date")
			return rootOpts.output(cmd).Success(s.occurrenceResult(updated))
		},
	}
}

func newNotesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <occurrence> [text]",
		Short: "Set or clear an occurrence's notes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			o, err := s.resolveOccurrence(args[0])
			if err != nil {
				return err
			}
			var notes *string
			if len(args) == 2 {
				notes = optional(args[1])
			}
			updated, err := s.svc.UpdateNotes(cmd.Context(), o.ID, notes)
			if err != nil {
				return err
			}
			s.replicate(cmd, "occurrence-notes")
			return rootOpts.output(cmd).Success(s.occurrenceResult(updated))
		},
	}
}

type occurrenceSummary struct {
	Occurrence model.TaskOccurrence `json:"occurrence"`
	Title      string               `json:"title"`
	Assignee   string               `json:"assignee,omitempty"`
}

func (o occurrenceSummary) String() string {
	who := "unassigned"
	if o.Assignee != "" {
		who = o.Assignee
	}
	return fmt.Sprintf("%s %s due %s, %s, %s", shortID(o.Occurrence.ID), o.Title,
		o.Occurrence.DueDate.Local().Format("Mon Jan 2 3:04 PM"), who, o.Occurrence.Status)
}

func (s *session) occurrenceResult(o model.TaskOccurrence) occurrenceSummary {
	sum := occurrenceSummary{Occurrence: o, Title: "Task"}
	if t, ok := s.store.Template(o.TemplateID); ok {
		sum.Title = t.Title
	}
	if o.AssignedMemberID != nil {
		if m, ok := s.store.Member(*o.AssignedMemberID); ok {
			sum.Assignee = m.DisplayName
		}
	}
	return sum
}
