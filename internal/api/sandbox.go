package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexbotov/decktutor/internal/audit"
	"github.com/alexbotov/decktutor/internal/auth"
	"github.com/alexbotov/decktutor/internal/catalog"
	"github.com/alexbotov/decktutor/internal/config"
	"github.com/alexbotov/decktutor/internal/database"
	"github.com/alexbotov/decktutor/internal/settings"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Sandbox wires the services behind the webservice routes
type Sandbox struct {
	DB       *database.DB
	Audit    *audit.Service
	Auth     *auth.Service
	Settings *settings.Service
	Catalog  *catalog.Service
	Handler  *Handler

	config *config.Config
	log    zerolog.Logger
}

// NewSandbox builds the services on a migrated database and seeds the
// catalog, from the configured file or the built-in default
func NewSandbox(ctx context.Context, db *database.DB, cfg *config.Config, log zerolog.Logger, clock clockwork.Clock) (*Sandbox, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	auditSvc := audit.NewWithClock(db.DB, clock)
	authSvc := auth.New(db.DB, &cfg.Auth, auditSvc, clock)
	settingsSvc := settings.New(db.DB, auditSvc, clock)
	catalogSvc := catalog.New(db.DB, auditSvc)

	file := catalog.Default()
	if cfg.Sandbox.CatalogFile != "" {
		var err error
		if file, err = catalog.LoadFile(cfg.Sandbox.CatalogFile); err != nil {
			return nil, err
		}
	}
	versions, listings, err := catalogSvc.Seed(ctx, file)
	if err != nil {
		return nil, err
	}
	log.Info().Int("versions", versions).Int("listings", listings).Msg("catalog seeded")

	return &Sandbox{
		DB:       db,
		Audit:    auditSvc,
		Auth:     authSvc,
		Settings: settingsSvc,
		Catalog:  catalogSvc,
		Handler:  New(db.DB, authSvc, settingsSvc, catalogSvc, log),
		config:   cfg,
		log:      log,
	}, nil
}

// Run serves the sandbox until ctx is cancelled, then shuts down gracefully
func (s *Sandbox) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Sandbox.Addr,
		Handler:      s.Handler.Routes(s.config.Sandbox.Prefix),
		ReadTimeout:  s.config.Sandbox.ReadTimeout,
		WriteTimeout: s.config.Sandbox.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().
			Str("addr", srv.Addr).
			Str("prefix", s.config.Sandbox.Prefix).
			Msg("sandbox listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("sandbox server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info().Msg("shutting down sandbox")
	return srv.Shutdown(shutdownCtx)
}
