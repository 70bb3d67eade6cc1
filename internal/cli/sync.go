package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/timeline"
)

const watchRetryDelay = 5 * time.Second

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config file and seed the household",
		Long: `Write the config file from the current flags and create the local
household with its two default members if it does not exist yet.

Example:
  choresync init --server https://chores.example.com --token s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.config.Save(rootOpts.ConfigPath); err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			seeded, err := s.svc.SeedIfEmpty(cmd.Context())
			if err != nil {
				return err
			}
			msg := "Config written to " + rootOpts.ConfigPath
			if seeded {
				msg += "\nCreated household with members You and Partner"
			}
			return rootOpts.output(cmd).Success(msg)
		},
	}
	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Generate upcoming occurrences and exchange changes with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.requireServer(); err != nil {
				return err
			}
			if _, err := s.svc.GenerateUpcoming(cmd.Context()); err != nil {
				return err
			}
			if err := s.coord.SyncNow(cmd.Context(), "manual"); err != nil {
				return err
			}
			return rootOpts.output(cmd).Success(fmt.Sprintf("Synced at revision %d", s.store.LastAppliedRevision()))
		},
	}
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch changes from the server without sending local edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			if err := s.requireServer(); err != nil {
				return err
			}
			if err := s.coord.PullIfNeeded(cmd.Context()); err != nil {
				return err
			}
			return rootOpts.output(cmd).Success(fmt.Sprintf("Up to date at revision %d", s.store.LastAppliedRevision()))
		},
	}
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Timeline bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and pull whenever the server announces a new revision",
		Long: `Stay connected to the server's revision feed. Each announced revision
newer than the local watermark triggers a pull. The connection is retried
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Timeline, "timeline", false, "print the timeline after every change")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	ctx := cmd.Context()
	s, err := opts.openSeeded(ctx)
	if err != nil {
		return err
	}
	if err := s.requireServer(); err != nil {
		return err
	}

	rebuilder := timeline.NewRebuilder()
	defer rebuilder.Cancel()
	var printMu sync.Mutex
	render := func() {
		if !opts.Timeline {
			return
		}
		in := timelineInput(s, false, time.Now())
		go func() {
			sections, err := rebuilder.Rebuild(ctx, in)
			if err != nil {
				if !errors.Is(err, timeline.ErrSuperseded) && !errors.Is(err, context.Canceled) {
					s.logger.Error("build timeline", "error", err)
				}
				return
			}
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("-", 40))
			writeTimeline(cmd.OutOrStdout(), sections)
		}()
	}

	refresh := func(reason string) {
		if err := s.coord.PullIfNeeded(ctx); err != nil {
			return
		}
		if n, err := s.svc.GenerateUpcoming(ctx); err == nil && n > 0 {
			s.coord.SyncNow(ctx, reason)
		}
		render()
	}

	refresh("watch-start")
	for {
		err := s.client.Watch(ctx, func(rev int64) {
			if rev <= s.store.LastAppliedRevision() {
				return
			}
			s.logger.Debug("revision announced", "revision", rev)
			refresh("revision-nudge")
		})
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("revision feed disconnected", "error", err, "retry_in", watchRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetryDelay):
		}
		// Catch up on anything missed while disconnected.
		refresh("watch-reconnect")
	}
}
