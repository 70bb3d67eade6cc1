package cli

import (
	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/household"
	"github.com/dukerupert/choresync/internal/model"
)

// MemberOptions holds flags shared by member add and update.
type MemberOptions struct {
	*RootOptions
	Name  string
	Emoji string
	Color string
	Self  bool
}

// NewMemberCommand creates the member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage household members",
	}
	cmd.AddCommand(newMemberListCommand(rootOpts))
	cmd.AddCommand(newMemberAddCommand(rootOpts))
	cmd.AddCommand(newMemberUpdateCommand(rootOpts))
	cmd.AddCommand(newMemberRemoveCommand(rootOpts))
	return cmd
}

func newMemberListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			members := s.store.Members()
			rows := make([][]string, 0, len(members))
			for _, m := range members {
				self := ""
				if m.IsSelf {
					self = "me"
				}
				rows = append(rows, []string{shortID(m.ID), m.EmojiSymbol, m.DisplayName, m.AccentColorHex, self, syncState(m.SyncRevision)})
			}
			return rootOpts.output(cmd).Table(members, []string{"ID", "", "NAME", "COLOR", "", "SYNC"}, rows)
		},
	}
}

func newMemberAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MemberOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			m, err := s.svc.AddMember(cmd.Context(), household.MemberInput{
				DisplayName:    args[0],
				EmojiSymbol:    opts.Emoji,
				AccentColorHex: opts.Color,
				IsSelf:         opts.Self,
			})
			if err != nil {
				return err
			}
			s.replicate(cmd, "member-add")
			return opts.output(cmd).Success(memberResult("Added", m))
		},
	}
	cmd.Flags().StringVar(&opts.Emoji, "emoji", "🙂", "emoji shown next to the name")
	cmd.Flags().StringVar(&opts.Color, "color", "#8E8E93", "accent color as #RRGGBB")
	cmd.Flags().BoolVar(&opts.Self, "self", false, "this device belongs to the new member")
	return cmd
}

func newMemberUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MemberOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update <member>",
		Short: "Change a member's name, emoji, color or self flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			m, err := s.resolveMember(args[0])
			if err != nil {
				return err
			}
			in := household.MemberInput{
				DisplayName:    m.DisplayName,
				EmojiSymbol:    m.EmojiSymbol,
				AccentColorHex: m.AccentColorHex,
				IsSelf:         m.IsSelf,
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.DisplayName = opts.Name
			}
			if flags.Changed("emoji") {
				in.EmojiSymbol = opts.Emoji
			}
			if flags.Changed("color") {
				in.AccentColorHex = opts.Color
			}
			if flags.Changed("self") {
				in.IsSelf = opts.Self
			}
			updated, err := s.svc.UpdateMember(cmd.Context(), m.ID, in)
			if err != nil {
				return err
			}
			s.replicate(cmd, "member-update")
			return opts.output(cmd).Success(memberResult("Updated", updated))
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Emoji, "emoji", "", "emoji shown next to the name")
	cmd.Flags().StringVar(&opts.Color, "color", "", "accent color as #RRGGBB")
	cmd.Flags().BoolVar(&opts.Self, "self", false, "this device belongs to the member")
	return cmd
}

func newMemberRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <member>",
		Short: "Remove a member from this device",
		Long: `Remove a member from this device. Removals are not replicated: other
devices keep the member until they remove it too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			m, err := s.resolveMember(args[0])
			if err != nil {
				return err
			}
			if err := s.svc.RemoveMember(cmd.Context(), m.ID); err != nil {
				return err
			}
			s.replicate(cmd, "member-remove")
			return rootOpts.output(cmd).Success(memberResult("Removed", m))
		},
	}
}

type memberSummary struct {
	Action string       `json:"action"`
	Member model.Member `json:"member"`
}

func (m memberSummary) String() string {
	return m.Action + " " + m.Member.EmojiSymbol + " " + m.Member.DisplayName + " (" + shortID(m.Member.ID) + ")"
}

func memberResult(action string, m model.Member) memberSummary {
	return memberSummary{Action: action, Member: m}
}

func syncState(rev int64) string {
	if rev == 0 {
		return "pending"
	}
	return "synced"
}
