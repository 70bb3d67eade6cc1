package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/household"
	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/recurrence"
)

// TemplateOptions holds flags shared by template add and update.
type TemplateOptions struct {
	*RootOptions
	Title   string
	Details string
	Every   string
	Lead    int
	Start   string
	Active  bool
}

// NewTemplateCommand creates the template command group.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"chore"},
		Short:   "Manage recurring chores",
	}
	cmd.AddCommand(newTemplateListCommand(rootOpts))
	cmd.AddCommand(newTemplateAddCommand(rootOpts))
	cmd.AddCommand(newTemplateUpdateCommand(rootOpts))
	cmd.AddCommand(newTemplateArchiveCommand(rootOpts))
	cmd.AddCommand(newTemplateDeleteCommand(rootOpts))
	return cmd
}

func newTemplateListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chores, most recently edited first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			templates := s.store.Templates(nil)
			rows := make([][]string, 0, len(templates))
			for _, t := range templates {
				state := "active"
				if !t.IsActive {
					state = "archived"
				}
				rows = append(rows, []string{
					shortID(t.ID), t.Title, recurrence.Of(&t).Describe(),
					strconv.Itoa(t.LeadTimeHours) + "h", state, syncState(t.SyncRevision),
				})
			}
			return rootOpts.output(cmd).Table(templates, []string{"ID", "TITLE", "CADENCE", "LEAD", "STATE", "SYNC"}, rows)
		},
	}
}

func newTemplateAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a recurring chore",
		Long: `Add a recurring chore and generate its upcoming occurrences.

Example:
  choresync template add "Take out trash" --every 1w --start "2025-01-06 19:00" --lead 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cadence, err := recurrence.Parse(opts.Every)
			if err != nil {
				return err
			}
			start, err := parseWhen(opts.Start, time.Now())
			if err != nil {
				return err
			}
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := s.svc.AddTemplate(cmd.Context(), household.TemplateInput{
				Title:         args[0],
				Details:       optional(opts.Details),
				Cadence:       cadence,
				LeadTimeHours: opts.Lead,
				StartDate:     start,
			})
			if err != nil {
				return err
			}
			s.replicate(cmd, "template-add")
			return opts.output(cmd).Success(templateResult("Added", t))
		},
	}
	cmd.Flags().StringVar(&opts.Every, "every", "1w", "cadence such as 3d, 2w or 1m")
	cmd.Flags().IntVar(&opts.Lead, "lead", 0, "hours before the due time to send a reminder")
	cmd.Flags().StringVar(&opts.Start, "start", "", "first due time, YYYY-MM-DD[ HH:MM] (default now)")
	cmd.Flags().StringVar(&opts.Details, "details", "", "free-form details")
	return cmd
}

func newTemplateUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update <template>",
		Short: "Edit a chore",
		Long: `Edit a chore. Moving the start date discards its pending occurrences and
regenerates them from the new start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := s.resolveTemplate(args[0])
			if err != nil {
				return err
			}
			in := household.TemplateInput{
				Title:         t.Title,
				Details:       t.Details,
				Cadence:       recurrence.Of(&t),
				LeadTimeHours: t.LeadTimeHours,
				StartDate:     t.Anchor(),
			}
			active := t.IsActive

			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = opts.Title
			}
			if flags.Changed("details") {
				in.Details = optional(opts.Details)
			}
			if flags.Changed("every") {
				if in.Cadence, err = recurrence.Parse(opts.Every); err != nil {
					return err
				}
			}
			if flags.Changed("lead") {
				in.LeadTimeHours = opts.Lead
			}
			if flags.Changed("start") {
				if in.StartDate, err = parseWhen(opts.Start, time.Now()); err != nil {
					return err
				}
			}
			if flags.Changed("active") {
				active = opts.Active
			}

			updated, err := s.svc.UpdateTemplate(cmd.Context(), t.ID, in, active)
			if err != nil {
				return err
			}
			s.replicate(cmd, "template-update")
			return opts.output(cmd).Success(templateResult("Updated", updated))
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Details, "details", "", "free-form details (empty clears)")
	cmd.Flags().StringVar(&opts.Every, "every", "", "cadence such as 3d, 2w or 1m")
	cmd.Flags().IntVar(&opts.Lead, "lead", 0, "reminder lead time in hours")
	cmd.Flags().StringVar(&opts.Start, "start", "", "first due time, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().BoolVar(&opts.Active, "active", true, "whether new occurrences are generated")
	return cmd
}

func newTemplateArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <template>",
		Short: "Stop generating occurrences for a chore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := s.resolveTemplate(args[0])
			if err != nil {
				return err
			}
			archived, err := s.svc.ArchiveTemplate(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			s.replicate(cmd, "template-archive")
			return rootOpts.output(cmd).Success(templateResult("Archived", archived))
		},
	}
}

func newTemplateDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <template>",
		Short: "Delete a chore with its occurrences from this device",
		Long: `Delete a chore with its occurrences and completions from this device.
Deletions are not replicated; archive a chore to stop it everywhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := s.resolveTemplate(args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteTemplate(cmd.Context(), t.ID); err != nil {
				return err
			}
			s.replicate(cmd, "template-delete")
			return rootOpts.output(cmd).Success(templateResult("Deleted", t))
		},
	}
}

type templateSummary struct {
	Action   string             `json:"action"`
	Template model.TaskTemplate `json:"template"`
}

func (t templateSummary) String() string {
	return fmt.Sprintf("%s %q (%s), %s", t.Action, t.Template.Title, shortID(t.Template.ID), recurrence.Of(&t.Template).Describe())
}

func templateResult(action string, t model.TaskTemplate) templateSummary {
	return templateSummary{Action: action, Template: t}
}

var whenLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseWhen reads a local date or date-time. Empty means zero, which callers
// treat as now. RFC 3339 input keeps its own offset.
func parseWhen(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
