// Package cli implements the choresync household client commands.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath  string
	ServerURL   string
	APIToken    string
	StorePath   string
	HorizonDays int
	LogLevel    string
	Format      string // "json" | "text"

	config Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the choresync client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "choresync",
		Short: "Shared household chores, synced between devices",
		Long: `choresync keeps a household's recurring chores on this device and
replicates them through a choresync server so every member sees the same
schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", DefaultConfigPath(), "config file")
	flags.StringVar(&opts.ServerURL, "server", "", "sync server URL (overrides server_url)")
	flags.StringVar(&opts.APIToken, "token", "", "household API token (overrides api_token)")
	flags.StringVar(&opts.StorePath, "store", "", "local store file (overrides store_path)")
	flags.IntVar(&opts.HorizonDays, "horizon-days", 0, "days of occurrences to keep generated ahead")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTimelineCommand(opts))
	cmd.AddCommand(NewMemberCommand(opts))
	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewOccurrenceCommand(opts))
	cmd.AddCommand(NewDeviceCommand(opts))

	return cmd
}

// load reads the config file and lets explicitly set flags win over it.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = o.ServerURL
	}
	if flags.Changed("token") {
		cfg.APIToken = o.APIToken
	}
	if flags.Changed("store") {
		cfg.StorePath = o.StorePath
	}
	if flags.Changed("horizon-days") {
		cfg.HorizonDays = o.HorizonDays
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	o.config = cfg.withDefaults(o.ConfigPath)
	o.logger = logging.SetupWriter(cmd.ErrOrStderr(), o.config.LogLevel)
	return nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
