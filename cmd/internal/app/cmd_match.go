package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/api"
)

func (c *cli) suggestionsCmd() *cobra.Command {
	var f api.ProfileFilter
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "List suggested profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Match.Suggestions(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	addFilterFlags(cmd, &f)
	return cmd
}

func (c *cli) browseCmd() *cobra.Command {
	var f api.ProfileFilter
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through all profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Profiles.List(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	addFilterFlags(cmd, &f)
	return cmd
}

func (c *cli) interestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interests",
		Short: "List the interests a profile can pick from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Profiles.Interests(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func addFilterFlags(cmd *cobra.Command, f *api.ProfileFilter) {
	fl := cmd.Flags()
	fl.StringVar(&f.Gender, "gender", "", "filter by gender")
	fl.StringVar(&f.City, "city", "", "filter by city")
	fl.StringVar(&f.Religion, "religion", "", "filter by religion")
	fl.IntVar(&f.AgeMin, "age-min", 0, "minimum age")
	fl.IntVar(&f.AgeMax, "age-max", 0, "maximum age")
	fl.Int64SliceVar(&f.Interests, "interests", nil, "interest ids")
	fl.IntVar(&f.Page, "page", 0, "page number")
}

func (c *cli) matchActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				var (
					out apiv1.MatchActionResponse
					err error
				)
				switch action {
				case "like":
					out, err = a.Match.Like(ctx, id)
				case "reject":
					out, err = a.Match.Reject(ctx, id)
				case "block":
					out, err = a.Match.Block(ctx, id)
				default:
					return fmt.Errorf("unknown action %q", action)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func (c *cli) matchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List mutual matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Match.Mutual(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
