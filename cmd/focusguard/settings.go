package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// withSettings opens the app for a settings command and closes it afterwards.
func withSettings(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp("")
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func addSettingsCommands(root *cobra.Command) {
	modeCmd := &cobra.Command{
		Use:       "mode <manual|ai>",
		Short:     "Set the focus mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.ModeManual), string(domain.ModeAI)},
		RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
			mode := domain.FocusMode(strings.ToLower(args[0]))
			if !mode.Valid() {
				return fmt.Errorf("unknown mode %q: want manual or ai", args[0])
			}
			if err := a.settings.SetMode(cmd.Context(), mode); err != nil {
				return err
			}
			fmt.Printf("Focus mode: %s\n", cyan(string(mode)))
			return nil
		}),
	}

	topicCmd := &cobra.Command{
		Use:   "topic <text>",
		Short: "Set the focus topic used in AI mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
			topic := strings.Join(args, " ")
			if err := a.settings.SetTopic(cmd.Context(), topic); err != nil {
				return err
			}
			fmt.Printf("Focus topic: %s\n", topic)
			return nil
		}),
	}

	allowCmd := &cobra.Command{
		Use:   "allow",
		Short: "Manage allow list exceptions",
	}
	allowCmd.AddCommand(
		&cobra.Command{
			Use:   "add <entry>",
			Short: "Allow a host, URL prefix, or video (youtube.com/watch?v=...)",
			Args:  cobra.ExactArgs(1),
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				if err := a.settings.AddAllowEntry(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s allowed %s\n", green("✓"), args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:     "rm <entry>",
			Aliases: []string{"remove"},
			Short:   "Remove an allow list entry",
			Args:    cobra.ExactArgs(1),
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				if err := a.settings.RemoveAllowEntry(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s removed %s\n", green("✓"), args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List allow list entries",
			Args:  cobra.NoArgs,
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				settings, err := a.settings.Load(cmd.Context())
				if err != nil {
					return err
				}
				if len(settings.AllowedDomains) == 0 {
					fmt.Println(gray("Allow list is empty"))
				}
				for _, e := range settings.AllowedDomains {
					if e.Name != "" {
						fmt.Printf("  - %s %s\n", e.Raw(), gray("("+e.Name+")"))
						continue
					}
					fmt.Printf("  - %s\n", e.Raw())
				}
				return nil
			}),
		},
	)

	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage block groups (manual mode)",
	}
	groupCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List block groups",
			Args:  cobra.NoArgs,
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				settings, err := a.settings.Load(cmd.Context())
				if err != nil {
					return err
				}
				printGroups(settings.BlockedGroups)
				return nil
			}),
		},
		groupToggleCmd("enable", true),
		groupToggleCmd("disable", false),
		&cobra.Command{
			Use:   "add <group> <host>",
			Short: "Block a host in a group (creating the group if needed)",
			Args:  cobra.ExactArgs(2),
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				if err := a.settings.AddGroupItem(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("%s %s blocked in %s\n", green("✓"), args[1], args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "reset <group>",
			Short: "Restore a default group's site list",
			Args:  cobra.ExactArgs(1),
			RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
				if err := a.settings.ResetGroup(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s %s reset to defaults\n", green("✓"), args[0])
				return nil
			}),
		},
	)

	escalationCmd := &cobra.Command{
		Use:   "escalation <warn-minutes> <hard-block-minutes>",
		Short: "Set the AI mode warn and hard block delays",
		Args:  cobra.ExactArgs(2),
		RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
			warn, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid warn minutes %q", args[0])
			}
			hard, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid hard block minutes %q", args[1])
			}
			if err := a.settings.SetEscalation(cmd.Context(), warn, hard); err != nil {
				return err
			}
			fmt.Printf("Warn after %d min, block %d min later\n", warn, hard)
			return nil
		}),
	}

	root.AddCommand(modeCmd, topicCmd, allowCmd, groupCmd, escalationCmd)
}

func groupToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <group>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a block group",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.settings.SetGroupEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Printf("%s %s %sd\n", green("✓"), args[0], verb)
			return nil
		}),
	}
}
