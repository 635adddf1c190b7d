// Package domain contains the sandbox domain models
//
// Wire types shared with clients (card versions, listings, registration
// payloads) live in pkg/decktutor; this package holds the server-side state.
package domain

import (
	"encoding/json"
	"time"

	"github.com/alexbotov/decktutor/pkg/decktutor"
)

// AccountStatus represents the status of an account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

// Account represents a registered DeckTutor user
type Account struct {
	ID                string            `json:"id" db:"id"`
	Login             string            `json:"login" db:"login"`
	Email             string            `json:"email" db:"email"`
	PasswordHash      string            `json:"-" db:"password_hash"`
	Person            decktutor.Person  `json:"person"`
	Address           decktutor.Address `json:"address"`
	Prefs             json.RawMessage   `json:"prefs" db:"prefs"`
	Status            AccountStatus     `json:"status" db:"status"`
	PrivacyAcceptedAt time.Time         `json:"privacy_accepted_at" db:"privacy_accepted_at"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	LastLoginAt       *time.Time        `json:"last_login_at" db:"last_login_at"`
}

// User returns the public view sent back on login
func (a *Account) User() *decktutor.User {
	u := &decktutor.User{
		ID:    a.ID,
		Login: a.Login,
		Email: a.Email,
	}
	var prefs struct {
		Language string `json:"language"`
		Currency string `json:"currency"`
	}
	if len(a.Prefs) > 0 && json.Unmarshal(a.Prefs, &prefs) == nil {
		u.Language = prefs.Language
		u.Currency = prefs.Currency
	}
	return u
}

// SessionStatus represents session state
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusLoggedOut SessionStatus = "logged_out"
)

// Session is the server side of an auth token. LastSequence is the highest
// sequence number accepted so far; a signed request must carry a greater one.
type Session struct {
	ID           string        `json:"id" db:"id"`
	AccountID    string        `json:"account_id" db:"account_id"`
	Secret       string        `json:"-" db:"secret"`
	LastSequence int64         `json:"last_sequence" db:"last_sequence"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at" db:"expires_at"`
	Status       SessionStatus `json:"status" db:"status"`
}

// Captcha is an issued human validation challenge
type Captcha struct {
	Code      string    `json:"code" db:"code"`
	Question  string    `json:"question"`
	Answer    string    `json:"-" db:"answer"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// EventSeverity represents audit event severity
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent represents a significant event
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	AccountID   *string         `json:"account_id,omitempty" db:"account_id"`
	SessionID   *string         `json:"session_id,omitempty" db:"session_id"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	Component   string          `json:"component" db:"component"`
}
