package cli

import (
	"github.com/alexbotov/decktutor/internal/api"
	"github.com/alexbotov/decktutor/internal/database"
	"github.com/spf13/cobra"
)

func (a *app) newSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a local emulation of the webservice",
		Long: "Serve a local emulation of the DeckTutor webservice, backed by SQLite or " +
			"PostgreSQL and seeded with a card catalog. Point the other commands at it " +
			"with --endpoint http://localhost:8080/ws-1.2/app/v1.",
		Args: cobra.NoArgs,
	}

	var reset bool
	sb := &a.cfg.Sandbox
	cmd.Flags().StringVar(&sb.Addr, "addr", sb.Addr, "Address to listen on")
	cmd.Flags().StringVar(&sb.Prefix, "prefix", sb.Prefix, "Path the webservice is mounted under")
	cmd.Flags().StringVar(&sb.CatalogFile, "catalog", sb.CatalogFile, "YAML catalog to seed, the built-in one when empty")
	cmd.Flags().StringVar(&a.cfg.Database.Driver, "db-driver", a.cfg.Database.Driver, "Database driver (sqlite or postgres)")
	cmd.Flags().StringVar(&a.cfg.Database.DSN, "db-dsn", a.cfg.Database.DSN, "Database connection string")
	cmd.Flags().BoolVar(&a.cfg.Auth.RequireCaptcha, "require-captcha", a.cfg.Auth.RequireCaptcha, "Require a captcha to register")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop accounts, sessions and stored config before starting")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		db, err := a.openSandboxDB(reset)
		if err != nil {
			return err
		}
		defer db.Close()

		sandbox, err := api.NewSandbox(cmd.Context(), db, a.cfg, a.log, a.clock)
		if err != nil {
			return err
		}
		return sandbox.Run(cmd.Context())
	}

	return cmd
}

// openSandboxDB connects to the configured database and migrates it,
// dropping the existing data first when reset is set
func (a *app) openSandboxDB(reset bool) (*database.DB, error) {
	db, err := database.New(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if reset {
		if err := db.Reset(); err != nil {
			db.Close()
			return nil, err
		}
		a.log.Warn().Msg("sandbox data dropped")
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	a.log.Info().Str("driver", a.cfg.Database.Driver).Msg("database ready")
	return db, nil
}
