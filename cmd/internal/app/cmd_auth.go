package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/lifecycle"
)

func (c *cli) loginCmd() *cobra.Command {
	var (
		in        lifecycle.LoginInput
		pwStdin   bool
		passwordF string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readSecret(cmd, passwordF, pwStdin)
			if err != nil {
				return err
			}
			in.Password = pw
			return c.run(cmd, func(ctx context.Context, a *App) error {
				if err := a.Controller.Login(ctx, in); err != nil {
					return formError(err)
				}
				u := a.Controller.User()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Username)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Username, "username", "u", "", "username")
	f.StringVarP(&in.Email, "email", "e", "", "email (instead of username)")
	f.StringVarP(&passwordF, "password", "p", "", "password (or VIVAH_PASSWORD)")
	f.BoolVar(&pwStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) error {
				if err := a.Controller.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return err
			})
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var (
		in        lifecycle.RegisterInput
		pwStdin   bool
		passwordF string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (verify the email before logging in)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readSecret(cmd, passwordF, pwStdin)
			if err != nil {
				return err
			}
			in.Password = pw
			return c.run(cmd, func(ctx context.Context, a *App) error {
				out, err := a.Controller.Register(ctx, in)
				if err != nil {
					return formError(err)
				}
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Check %s for a verification link.\n", out.Email)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Username, "username", "u", "", "username")
	f.StringVarP(&in.Email, "email", "e", "", "email")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVarP(&passwordF, "password", "p", "", "password (or VIVAH_PASSWORD)")
	f.BoolVar(&pwStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(_ context.Context, a *App) error {
				return printJSON(cmd.OutOrStdout(), a.Controller.User())
			})
		},
	}
}

func (c *cli) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Confirm an email verification token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) error {
				msg, err := a.Controller.VerifyEmail(ctx, args[0])
				if err != nil {
					return formError(err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}
}

func (c *cli) passwordResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password-reset",
		Short: "Reset a forgotten password",
	}

	request := &cobra.Command{
		Use:   "request <email>",
		Short: "Email a reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *App) error {
				msg, err := a.Controller.RequestPasswordReset(ctx, args[0])
				if err != nil {
					return formError(err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}

	var (
		pwStdin   bool
		passwordF string
	)
	confirm := &cobra.Command{
		Use:   "confirm <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, passwordF, pwStdin)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *App) error {
				msg, err := a.Controller.ConfirmPasswordReset(ctx, args[0], pw)
				if err != nil {
					return formError(err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}
	confirm.Flags().StringVarP(&passwordF, "password", "p", "", "new password (or VIVAH_PASSWORD)")
	confirm.Flags().BoolVar(&pwStdin, "password-stdin", false, "read the new password from stdin")

	cmd.AddCommand(request, confirm)
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				p, err := a.Controller.RefreshProfile(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	var (
		patch     apiv1.ProfilePatch
		name      string
		dob       string
		gender    string
		city      string
		religion  string
		education string
		job       string
		bio       string
		interests []int64
		firstName string
		lastName  string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; only the flags you pass are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			set := func(flag string, dst **string, v *string) {
				if f.Changed(flag) {
					*dst = v
				}
			}
			set("name", &patch.Name, &name)
			set("dob", &patch.DOB, &dob)
			set("gender", &patch.Gender, &gender)
			set("city", &patch.City, &city)
			set("religion", &patch.Religion, &religion)
			set("education", &patch.Education, &education)
			set("profession", &patch.Profession, &job)
			set("bio", &patch.Bio, &bio)
			if f.Changed("interests") {
				patch.Interests = &interests
			}

			var user apiv1.UserPatch
			set("first-name", &user.FirstName, &firstName)
			set("last-name", &user.LastName, &lastName)

			return c.authed(cmd, func(ctx context.Context, a *App) error {
				if user.FirstName != nil || user.LastName != nil {
					if _, err := a.Controller.UpdateIdentity(ctx, user); err != nil {
						return formError(err)
					}
				}
				if patch == (apiv1.ProfilePatch{}) {
					return printJSON(cmd.OutOrStdout(), a.Controller.User())
				}
				p, err := a.Controller.UpdateProfile(ctx, patch)
				if err != nil {
					return formError(err)
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	uf := update.Flags()
	uf.StringVar(&name, "name", "", "display name")
	uf.StringVar(&dob, "dob", "", "date of birth (YYYY-MM-DD)")
	uf.StringVar(&gender, "gender", "", "male, female or other")
	uf.StringVar(&city, "city", "", "city")
	uf.StringVar(&religion, "religion", "", "religion")
	uf.StringVar(&education, "education", "", "education")
	uf.StringVar(&job, "profession", "", "profession")
	uf.StringVar(&bio, "bio", "", "about you")
	uf.Int64SliceVar(&interests, "interests", nil, "interest ids")
	uf.StringVar(&firstName, "first-name", "", "account first name")
	uf.StringVar(&lastName, "last-name", "", "account last name")

	var confirmed bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete your profile and sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to delete without --yes")
			}
			return c.authed(cmd, func(ctx context.Context, a *App) error {
				if err := a.Controller.DeleteAccount(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Profile deleted")
				return err
			})
		},
	}
	del.Flags().BoolVar(&confirmed, "yes", false, "confirm deletion")

	cmd.AddCommand(show, update, del)
	return cmd
}
