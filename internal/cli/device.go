package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/model"
)

// DeviceOptions holds flags for the device commands.
type DeviceOptions struct {
	*RootOptions
	Member    string
	PushToken string
}

// NewDeviceCommand creates the device command group.
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Register this device for reminders",
	}
	cmd.AddCommand(newDeviceRegisterCommand(rootOpts))
	cmd.AddCommand(newDeviceUnregisterCommand(rootOpts))
	return cmd
}

func newDeviceRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeviceOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Send a push token so the server can remind a member",
		Long: `Send a push token so the server can remind a member of upcoming
occurrences. The token is a Web Push subscription; pass it inline or as
@file to read it from a file. The member defaults to the one marked as self.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(opts.PushToken)
			if err != nil {
				return err
			}
			s, err := opts.openSeeded(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.requireServer(); err != nil {
				return err
			}

			var member model.Member
			if opts.Member != "" {
				if member, err = s.resolveMember(opts.Member); err != nil {
					return err
				}
			} else if member, err = selfMember(s); err != nil {
				return err
			}

			// The server only knows members it has been sent.
			if err := s.coord.SyncNow(cmd.Context(), "device-register"); err != nil {
				return err
			}
			if err := s.client.RegisterDevice(cmd.Context(), model.DeviceRegistration{MemberID: member.ID, Token: token}); err != nil {
				return err
			}
			s.store.SetDeviceToken(token)
			if err := s.store.Save(); err != nil {
				return err
			}
			return opts.output(cmd).Success("Registered this device for " + member.DisplayName)
		},
	}
	cmd.Flags().StringVar(&opts.Member, "member", "", "member to remind (default: self)")
	cmd.Flags().StringVar(&opts.PushToken, "push-token", "", "push subscription JSON, or @path")
	cmd.MarkFlagRequired("push-token")
	return cmd
}

func newDeviceUnregisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeviceOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Stop reminders to this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			if err := s.requireServer(); err != nil {
				return err
			}
			token := s.store.DeviceToken()
			if opts.PushToken != "" {
				if token, err = readToken(opts.PushToken); err != nil {
					return err
				}
			}
			if token == "" {
				return fmt.Errorf("this device is not registered")
			}
			if err := s.client.UnregisterDevice(cmd.Context(), token); err != nil {
				return err
			}
			if token == s.store.DeviceToken() {
				s.store.SetDeviceToken("")
				if err := s.store.Save(); err != nil {
					return err
				}
			}
			return opts.output(cmd).Success("Unregistered this device")
		},
	}
	cmd.Flags().StringVar(&opts.PushToken, "push-token", "", "push token to remove (default: the one registered here)")
	return cmd
}

func selfMember(s *session) (model.Member, error) {
	for _, m := range s.store.Members() {
		if m.IsSelf {
			return m, nil
		}
	}
	return model.Member{}, fmt.Errorf("no member is marked as self: pass --member")
}

func readToken(v string) (string, error) {
	if path, ok := strings.CutPrefix(v, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		v = string(data)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("token is empty")
	}
	return v, nil
}
