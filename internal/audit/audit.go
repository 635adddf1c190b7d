// Package audit records significant sandbox events: account changes, logins
// and rejected signatures
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Event types
const (
	EventAccountRegistered = "account_registered"
	EventLogin             = "login"
	EventLoginFailed       = "login_failed"
	EventLogout            = "logout"
	EventSessionExpired    = "session_expired"
	EventSignatureRejected = "signature_rejected"
	EventConfigStored      = "config_stored"
	EventConfigDeleted     = "config_deleted"
	EventCaptchaFailed     = "captcha_failed"
	EventCatalogSeeded     = "catalog_seeded"
)

// Service provides audit logging functionality
type Service struct {
	db    *sql.DB
	clock clockwork.Clock
}

// New creates a new audit service
func New(db *sql.DB) *Service {
	return NewWithClock(db, clockwork.NewRealClock())
}

// NewWithClock creates an audit service stamping events with clock
func NewWithClock(db *sql.DB, clock clockwork.Clock) *Service {
	return &Service{db: db, clock: clock}
}

// LogEvent records a significant event
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	if event.Component == "" {
		event.Component = "sandbox"
	}

	var data sql.NullString
	if len(event.Data) > 0 {
		data = sql.NullString{String: string(event.Data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, account_id, session_id, description, data, ip_address, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.AccountID, event.SessionID,
		event.Description, data, event.IPAddress, event.Component)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Log is a convenience method for logging events
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...EventOption) error {
	event := &domain.AuditEvent{
		Type:        eventType,
		Severity:    severity,
		Description: description,
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// EventOption is a functional option for configuring audit events
type EventOption func(*domain.AuditEvent)

// WithAccount sets the account ID for the event
func WithAccount(accountID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.AccountID = &accountID
	}
}

// WithSession sets the session ID for the event
func WithSession(sessionID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.SessionID = &sessionID
	}
}

// WithIP sets the IP address for the event
func WithIP(ip string) EventOption {
	return func(e *domain.AuditEvent) {
		e.IPAddress = ip
	}
}

// WithComponent sets the component for the event
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	AccountID string
	Type      string
	Limit     int
}

// GetEvents retrieves audit events, newest first
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	query := `SELECT id, type, severity, timestamp, account_id, session_id, description, data, ip_address, component
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.AccountID != "" {
			query += fmt.Sprintf(" AND account_id = $%d", paramIdx)
			args = append(args, filter.AccountID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
	}

	query += " ORDER BY timestamp DESC, id"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", paramIdx)
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var accountID, sessionID, data, ip sql.NullString

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&accountID, &sessionID, &event.Description, &data, &ip, &event.Component)
		if err != nil {
			return nil, err
		}

		if accountID.Valid {
			event.AccountID = &accountID.String
		}
		if sessionID.Valid {
			event.SessionID = &sessionID.String
		}
		if data.Valid && data.String != "" {
			event.Data = json.RawMessage(data.String)
		}
		event.IPAddress = ip.String

		events = append(events, &event)
	}

	return events, rows.Err()
}
