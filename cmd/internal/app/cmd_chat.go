package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"vivahvows/cmd/internal/realtime"
)

func (c *cli) roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List chat rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Chat.Rooms(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func (c *cli) messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <room-id>",
		Short: "Print a room's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "room id")
			if err != nil {
				return err
			}
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Chat.Messages(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	var viaSocket bool
	cmd := &cobra.Command{
		Use:   "send <room-id> <message...>",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "room id")
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				if !viaSocket {
					out, err := a.Chat.Send(ctx, id, text)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), out)
				}

				room, err := a.Hub.Room(ctx, realtime.RoomOptions{
					ChannelOptions: realtime.ChannelOptions{
						Origin:            a.cfg.WS.Origin,
						HeartbeatInterval: a.cfg.WS.HeartbeatInterval,
						HeartbeatTimeout:  a.cfg.WS.HeartbeatTimeout,
						Logger:            a.log,
						Metrics:           a.metrics,
					},
					RoomID: id,
				})
				if err != nil {
					return err
				}
				defer a.Hub.LeaveRoom(id)
				return room.Send(ctx, text)
			})
		},
	}
	cmd.Flags().BoolVar(&viaSocket, "socket", false, "send over the room's realtime socket instead of REST")
	return cmd
}
