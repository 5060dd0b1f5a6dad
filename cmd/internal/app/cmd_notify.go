package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"vivahvows/cmd/internal/realtime"
)

func (c *cli) notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "List or acknowledge notifications",
	}

	var unread bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Notifications.List(ctx, unread)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread notifications")

	read := &cobra.Command{
		Use:   "read <id...>",
		Short: "Mark notifications read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, s := range args {
				id, err := parseID(s, "notification id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				for _, id := range ids {
					n, err := a.Notifications.MarkRead(ctx, id)
					if err != nil {
						return err
					}
					if err := printJSON(cmd.OutOrStdout(), n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, read)
	return cmd
}

// watchCmd follows the notification socket and prints one JSON line per
// event.
func (c *cli) watchCmd() *cobra.Command {
	var forDur time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				if forDur > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, forDur)
					defer cancel()
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				a.OnEvent(func(ev realtime.Event) {
					_ = enc.Encode(toEventResponse(ev))
				})
				return a.Hub.Start(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&forDur, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (c *cli) agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the background agent (local API, metrics, live notifications)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) error {
				return a.RunAgent(ctx)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address for the local API")
	_ = c.v.BindPFlag("agent.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
