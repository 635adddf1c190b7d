// Package database provides database access for the DeckTutor sandbox
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	Driver string
}

// New creates a new database connection. Supported drivers are "postgres"
// and "sqlite".
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite serializes writers; an in-memory database only lives on its
		// own connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// NewMemory opens a migrated in-memory SQLite database
func NewMemory() (*DB, error) {
	db, err := New("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schema is valid for both PostgreSQL and SQLite
const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id VARCHAR(36) PRIMARY KEY,
		login VARCHAR(64) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		birth_date VARCHAR(10) NOT NULL DEFAULT '',
		phone VARCHAR(32) NOT NULL DEFAULT '',
		street VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(255) NOT NULL DEFAULT '',
		zip VARCHAR(16) NOT NULL DEFAULT '',
		province VARCHAR(64) NOT NULL DEFAULT '',
		country VARCHAR(2) NOT NULL DEFAULT '',
		prefs TEXT NOT NULL DEFAULT '{}',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		privacy_accepted_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_login_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(36) PRIMARY KEY,
		account_id VARCHAR(36) NOT NULL REFERENCES accounts(id),
		secret VARCHAR(64) NOT NULL,
		last_sequence BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS captchas (
		code VARCHAR(36) PRIMARY KEY,
		answer VARCHAR(16) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS config_entries (
		account_id VARCHAR(36) NOT NULL REFERENCES accounts(id),
		name VARCHAR(255) NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, name)
	);

	CREATE TABLE IF NOT EXISTS card_versions (
		id VARCHAR(64) PRIMARY KEY,
		game VARCHAR(8) NOT NULL,
		name VARCHAR(255) NOT NULL,
		set_code VARCHAR(16) NOT NULL,
		set_name VARCHAR(255) NOT NULL,
		number VARCHAR(16) NOT NULL DEFAULT '',
		rarity VARCHAR(32) NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(36) PRIMARY KEY,
		version_id VARCHAR(64) NOT NULL REFERENCES card_versions(id),
		seller VARCHAR(64) NOT NULL,
		state VARCHAR(2) NOT NULL,
		language VARCHAR(5) NOT NULL,
		foil BOOLEAN NOT NULL DEFAULT FALSE,
		quantity INTEGER NOT NULL,
		price BIGINT NOT NULL,
		currency VARCHAR(3) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR(36) PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		account_id VARCHAR(36),
		session_id VARCHAR(36),
		description TEXT NOT NULL,
		data TEXT,
		ip_address VARCHAR(45),
		component VARCHAR(100) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);
	CREATE INDEX IF NOT EXISTS idx_card_versions_game_name ON card_versions(game, name);
	CREATE INDEX IF NOT EXISTS idx_card_versions_set ON card_versions(set_code);
	CREATE INDEX IF NOT EXISTS idx_listings_version ON listings(version_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_account ON audit_events(account_id);
`

// Migrate creates all required tables
func (db *DB) Migrate() error {
	for _, stmt := range statements(schema) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

// Reset drops every sandbox table; Migrate recreates them empty
func (db *DB) Reset() error {
	for _, table := range []string{
		"audit_events", "listings", "card_versions", "config_entries",
		"captchas", "sessions", "accounts",
	} {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// statements splits a script on semicolons; the schema has none inside
// literals.
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
