package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vivahvows/cmd/internal/auth/lifecycle"
)

// Execute runs the vivah command tree. It returns an error instead of calling
// os.Exit so deferred cleanup runs.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return NewRootCommand().ExecuteContext(ctx)
}

// cli carries state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configPath string
}

// flagBindings maps persistent flags onto config keys.
var flagBindings = map[string]string{
	"api":        "api.origin",
	"ws":         "ws.origin",
	"store":      "store.kind",
	"store-dir":  "store.dir",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "vivah",
		Short:         "VivahVows command line client",
		Long:          "vivah talks to the VivahVows API: sign in, manage your profile, browse matches, chat and follow notifications.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "config file (YAML)")
	pf.String("api", "", "API origin, e.g. https://api.vivahvows.in")
	pf.String("ws", "", "realtime origin (defaults to the API origin)")
	pf.String("store", "", "session store: file, memory, redis or postgres")
	pf.String("store-dir", "", "directory for the file session store")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (pretty, text, json)")
	for name, key := range flagBindings {
		_ = c.v.BindPFlag(key, pf.Lookup(name))
	}

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.whoamiCmd(),
		c.verifyEmailCmd(),
		c.passwordResetCmd(),
		c.profileCmd(),
		c.suggestionsCmd(),
		c.browseCmd(),
		c.interestsCmd(),
		c.matchActionCmd("like", "Like a profile"),
		c.matchActionCmd("reject", "Pass on a profile"),
		c.matchActionCmd("block", "Block a user"),
		c.matchesCmd(),
		c.roomsCmd(),
		c.messagesCmd(),
		c.sendCmd(),
		c.notificationsCmd(),
		c.watchCmd(),
		c.agentCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "vivah version %s\n", Version)
		},
	}
}

// open loads config and builds the App. The caller closes it.
func (c *cli) open(cmd *cobra.Command) (*App, error) {
	cfg, err := LoadConfig(c.v, c.configPath)
	if err != nil {
		return nil, err
	}
	log := NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return New(cmd.Context(), cfg, log)
}

// run opens the App and calls fn with it.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(cmd.Context(), a)
}

// authed is run with a restored session. It fails when nobody is logged in.
func (c *cli) authed(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	return c.run(cmd, func(ctx context.Context, a *App) error {
		if err := a.Controller.Bootstrap(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		if a.Controller.State() != lifecycle.StateAuthenticated {
			return fmt.Errorf("%w: run `vivah login` first", lifecycle.ErrNotAuthenticated)
		}
		return fn(ctx, a)
	})
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// readSecret returns flagValue, or the first line of stdin when fromStdin is
// set.
func readSecret(cmd *cobra.Command, flagValue string, fromStdin bool) (string, error) {
	if !fromStdin {
		if flagValue == "" {
			flagValue = os.Getenv("VIVAH_PASSWORD")
		}
		return flagValue, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

// formError renders field errors below the summary so the user sees every
// rejected field.
func formError(err error) error {
	var fields map[string][]string
	var ve *lifecycle.ValidationError
	var ie *lifecycle.InvalidCredentialsError
	switch {
	case errors.As(err, &ve):
		fields = ve.Fields
	case errors.As(err, &ie):
		fields = ie.Fields
	default:
		return err
	}
	if len(fields) == 0 {
		return err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(err.Error())
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s: %s", name, strings.Join(fields[name], " "))
	}
	return errors.New(b.String())
}
