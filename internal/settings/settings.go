// Package settings stores the per-account configuration entries clients
// save under /account/config
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexbotov/decktutor/internal/audit"
	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/jonboulle/clockwork"
)

const maxKeySize = 255

var (
	ErrInvalidKey   = errors.New("invalid config key")
	ErrInvalidValue = errors.New("config value must be valid JSON")
)

// Service provides per-account config storage
type Service struct {
	db    *sql.DB
	audit *audit.Service
	clock clockwork.Clock
}

// New creates a new settings service
func New(db *sql.DB, auditSvc *audit.Service, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: db, audit: auditSvc, clock: clock}
}

func validKey(key string) bool {
	return key != "" && len(key) <= maxKeySize
}

// Load returns the stored value of key, or nil when nothing is stored
func (s *Service) Load(ctx context.Context, accountID, key string) (json.RawMessage, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM config_entries WHERE account_id = $1 AND name = $2",
		accountID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return json.RawMessage(value), nil
}

// Store saves value under key, replacing any previous value. Storing JSON
// null deletes the entry.
func (s *Service) Store(ctx context.Context, accountID, key string, value json.RawMessage, ip string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	if string(value) == "null" {
		return s.Delete(ctx, accountID, key, ip)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_entries (account_id, name, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, accountID, key, string(value), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}

	s.audit.Log(ctx, audit.EventConfigStored, domain.SeverityInfo,
		fmt.Sprintf("Config stored: %s", key),
		map[string]interface{}{"key": key, "size": len(value)},
		audit.WithAccount(accountID), audit.WithIP(ip))

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Service) Delete(ctx context.Context, accountID, key, ip string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM config_entries WHERE account_id = $1 AND name = $2", accountID, key)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.audit.Log(ctx, audit.EventConfigDeleted, domain.SeverityInfo,
			fmt.Sprintf("Config deleted: %s", key),
			map[string]string{"key": key},
			audit.WithAccount(accountID), audit.WithIP(ip))
	}
	return nil
}
