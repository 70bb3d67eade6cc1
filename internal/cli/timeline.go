package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/timeline"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	All bool
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show upcoming occurrences grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			in := timelineInput(s, opts.All, time.Now())
			sections := timeline.BuildSections(in.Occurrences, in.Templates, in.Members, in.IncludeCompleted, in.Now)

			out := opts.output(cmd)
			if out.Format == "json" {
				return out.Success(sections)
			}
			if len(sections) == 0 {
				return out.Success("Nothing scheduled")
			}
			writeTimeline(out.Writer, sections)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include completed and skipped occurrences")

	return cmd
}

func timelineInput(s *session, includeCompleted bool, now time.Time) timeline.Input {
	return timeline.Input{
		Occurrences:      s.store.Occurrences(nil),
		Templates:        s.store.Templates(nil),
		Members:          s.store.Members(),
		IncludeCompleted: includeCompleted,
		Now:              now,
	}
}

func writeTimeline(w io.Writer, sections []timeline.Section) {
	for i, sec := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s\n", sec.Title, sec.Subtitle)
		for _, row := range sec.Rows {
			who := "unassigned"
			if row.MemberName != "" {
				who = row.MemberEmoji + " " + row.MemberName
			}
			fmt.Fprintf(w, "  %s  %-8s %-24s %-16s %s\n", shortID(row.ID), row.Time, row.Title, who, row.StatusDescription)
		}
	}
}
