// Package cli implements the decktutor command line: a thin shell over the
// webservice client that keeps its session in a YAML file between runs
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/alexbotov/decktutor/internal/config"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// RootFlags are the flags shared by every command
type RootFlags struct {
	Endpoint    string
	Game        string
	SessionFile string
	Output      string
}

type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	clock clockwork.Clock
	flags *RootFlags
}

// NewRootCmd builds the decktutor command tree
func NewRootCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	a := &app{cfg: cfg, log: log, clock: clockwork.NewRealClock(), flags: &RootFlags{}}

	cmd := &cobra.Command{
		Use:           "decktutor",
		Short:         "Talk to the DeckTutor card marketplace webservice",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.flags.Output != OutputText && a.flags.Output != OutputJSON {
				return fmt.Errorf("unsupported output %q, expected %s or %s", a.flags.Output, OutputText, OutputJSON)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.flags.Endpoint,
		"endpoint",
		cfg.Client.Endpoint,
		"Base URL of the webservice",
	)
	cmd.PersistentFlags().StringVarP(&a.flags.Game,
		"game", "g",
		"",
		"Card game to search in (mtg, wow, ygo)",
	)
	cmd.PersistentFlags().StringVar(&a.flags.SessionFile,
		"session-file",
		cfg.Client.SessionFile,
		"File the login session is kept in",
	)
	cmd.PersistentFlags().StringVarP(&a.flags.Output,
		"output", "o",
		OutputText,
		"Output format (text or json)",
	)

	cmd.AddCommand(
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newCaptchaCmd(),
		a.newRegisterCmd(),
		a.newConfigCmd(),
		a.newCardsCmd(),
		a.newSerpCmd(),
		a.newSandboxCmd(),
	)

	return cmd
}

// Execute runs the command tree with args
func Execute(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	cmd := NewRootCmd(cfg, log)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// clientFunc is the body of a command that talks to the webservice
type clientFunc func(ctx context.Context, c *decktutor.Client, w io.Writer) error

// withClient opens a client on the stored session, runs fn, and stores the
// session again, so the sequence number survives between invocations even
// when fn fails
func (a *app) withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		state, err := loadSession(a.flags.SessionFile)
		if err != nil {
			return err
		}

		c := decktutor.NewClient(&decktutor.ClientConfig{
			Endpoint:      a.flags.Endpoint,
			Timeout:       a.cfg.Client.Timeout,
			NameCacheSize: a.cfg.Client.NameCacheSize,
			Logger:        &a.log,
		})

		game := decktutor.Game(a.flags.Game)
		if game == "" {
			game = state.Game
		}
		if game == "" {
			game = decktutor.Game(a.cfg.Client.Game)
		}
		if err := c.SetGame(game); err != nil {
			return err
		}

		restored := false
		if state.Session != nil {
			switch {
			case state.Endpoint != c.Endpoint():
				a.log.Debug().Str("endpoint", state.Endpoint).Msg("ignoring session issued by another endpoint")
			case state.Session.Expired(a.clock.Now()):
				a.log.Warn().Time("expiration", state.Session.Expiration).Msg("stored session has expired, log in again")
			default:
				c.RestoreSession(state.Session)
				restored = true
			}
		}

		runErr := fn(cmd.Context(), c, cmd.OutOrStdout())
		if restored && decktutor.IsSessionRejected(runErr) && c.Session() != nil {
			// the service dropped the session, so the request never ran
			a.log.Warn().Err(runErr).Msg("stored session was refused, continuing logged out")
			c.RestoreSession(nil)
			runErr = fn(cmd.Context(), c, cmd.OutOrStdout())
		}

		// keep a login this run did not use
		if !restored && state.Session != nil && c.Session() == nil {
			return runErr
		}

		saveErr := saveSession(a.flags.SessionFile, &sessionFile{
			Endpoint: c.Endpoint(),
			Game:     c.Game(),
			Session:  c.Session(),
		})
		if runErr != nil {
			return runErr
		}
		return saveErr
	}
}
