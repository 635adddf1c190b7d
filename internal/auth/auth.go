// Package auth provides the sandbox accounts, captchas and signed sessions
package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexbotov/decktutor/internal/audit"
	"github.com/alexbotov/decktutor/internal/config"
	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/alexbotov/decktutor/internal/rng"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSignature   = errors.New("invalid request signature")
	ErrInvalidSequence    = errors.New("sequence number already used")
	ErrUserExists         = errors.New("login or email already exists")
	ErrInvalidCaptcha     = errors.New("invalid captcha")
	ErrPrivacyRequired    = errors.New("privacy policy must be accepted")
)

// captchaTTL bounds how long an issued captcha can be answered
const captchaTTL = 10 * time.Minute

// Service provides authentication functionality
type Service struct {
	db     *sql.DB
	config *config.AuthConfig
	audit  *audit.Service
	clock  clockwork.Clock
	random *rng.Source
}

// New creates a new auth service
func New(db *sql.DB, cfg *config.AuthConfig, auditSvc *audit.Service, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		db:     db,
		config: cfg,
		audit:  auditSvc,
		clock:  clock,
		random: rng.New(nil),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// CreateCaptcha issues an arithmetic challenge
func (s *Service) CreateCaptcha(ctx context.Context) (*domain.Captcha, error) {
	a, err := s.randomDigit()
	if err != nil {
		return nil, err
	}
	b, err := s.randomDigit()
	if err != nil {
		return nil, err
	}

	now := s.now()
	captcha := &domain.Captcha{
		Code:      uuid.New().String(),
		Question:  fmt.Sprintf("%d + %d", a, b),
		Answer:    strconv.Itoa(a + b),
		CreatedAt: now,
		ExpiresAt: now.Add(captchaTTL),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO captchas (code, answer, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, captcha.Code, captcha.Answer, captcha.CreatedAt, captcha.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store captcha: %w", err)
	}

	return captcha, nil
}

// checkCaptcha consumes a captcha; it can be answered once, right or wrong
func (s *Service) checkCaptcha(ctx context.Context, code, answer string) error {
	if code == "" {
		return ErrInvalidCaptcha
	}

	var expected string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT answer, expires_at FROM captchas WHERE code = $1", code).Scan(&expected, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCaptcha
		}
		return fmt.Errorf("database error: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM captchas WHERE code = $1", code); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if !s.now().Before(expiresAt) || strings.TrimSpace(answer) != expected {
		return ErrInvalidCaptcha
	}
	return nil
}

// Register creates a new account
func (s *Service) Register(ctx context.Context, req *decktutor.RegisterRequest, ip string) (*domain.Account, error) {
	// Validate input
	if req.User.Login == "" || req.User.Email == "" || req.User.Password == "" {
		return nil, errors.New("login, email, and password are required")
	}
	if !req.Privacy {
		return nil, ErrPrivacyRequired
	}
	if len(req.User.Password) < s.config.MinPasswordSize {
		return nil, fmt.Errorf("password must be at least %d characters", s.config.MinPasswordSize)
	}

	if s.config.RequireCaptcha {
		if err := s.checkCaptcha(ctx, req.CaptchaCode, req.CaptchaAnswer); err != nil {
			if errors.Is(err, ErrInvalidCaptcha) {
				s.audit.Log(ctx, audit.EventCaptchaFailed, domain.SeverityWarning,
					fmt.Sprintf("Captcha failed for registration of %s", req.User.Login),
					nil, audit.WithIP(ip))
			}
			return nil, err
		}
	}

	// Check if account exists
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE login = $1 OR email = $2",
		req.User.Login, req.User.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if exists > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.User.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	prefs := json.RawMessage(`{}`)
	if req.Prefs != nil {
		if prefs, err = json.Marshal(req.Prefs); err != nil {
			return nil, fmt.Errorf("invalid prefs: %w", err)
		}
	}

	now := s.now()
	account := &domain.Account{
		ID:                uuid.New().String(),
		Login:             req.User.Login,
		Email:             req.User.Email,
		PasswordHash:      string(hash),
		Person:            req.Person,
		Address:           req.Address,
		Prefs:             prefs,
		Status:            domain.AccountStatusActive,
		PrivacyAcceptedAt: now,
		CreatedAt:         now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, login, email, password_hash, first_name, last_name, birth_date, phone,
			street, city, zip, province, country, prefs, status, privacy_accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, account.ID, account.Login, account.Email, account.PasswordHash,
		account.Person.FirstName, account.Person.LastName, account.Person.BirthDate, account.Person.Phone,
		account.Address.Street, account.Address.City, account.Address.Zip, account.Address.Province, account.Address.Country,
		string(account.Prefs), account.Status, account.PrivacyAcceptedAt, account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.audit.Log(ctx, audit.EventAccountRegistered, domain.SeverityInfo,
		fmt.Sprintf("Account registered: %s", account.Login),
		map[string]string{"account_id": account.ID},
		audit.WithAccount(account.ID), audit.WithIP(ip))

	return account, nil
}

const accountColumns = `id, login, email, password_hash, first_name, last_name, birth_date, phone,
	street, city, zip, province, country, prefs, status, privacy_accepted_at, created_at, last_login_at`

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var prefs string
	err := row.Scan(&a.ID, &a.Login, &a.Email, &a.PasswordHash,
		&a.Person.FirstName, &a.Person.LastName, &a.Person.BirthDate, &a.Person.Phone,
		&a.Address.Street, &a.Address.City, &a.Address.Zip, &a.Address.Province, &a.Address.Country,
		&prefs, &a.Status, &a.PrivacyAcceptedAt, &a.CreatedAt, &a.LastLoginAt)
	if err != nil {
		return nil, err
	}
	a.Prefs = json.RawMessage(prefs)
	return &a, nil
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("account not found")
		}
		return nil, err
	}
	return account, nil
}

// Login checks the credentials and opens a session. The returned secret is
// only ever sent once; requests prove they know it by their signature.
func (s *Service) Login(ctx context.Context, login, password, ip string) (*decktutor.LoginResult, *domain.Session, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE login = $1", login))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("database error: %w", err)
		}
		s.recordFailedLogin(ctx, login, ip)
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.recordFailedLogin(ctx, login, ip)
		return nil, nil, ErrInvalidCredentials
	}

	if account.Status != domain.AccountStatusActive {
		return nil, nil, ErrAccountNotActive
	}

	session, token, err := s.createSession(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	s.db.ExecContext(ctx, "UPDATE accounts SET last_login_at = $1 WHERE id = $2", now, account.ID)
	account.LastLoginAt = &now

	s.audit.Log(ctx, audit.EventLogin, domain.SeverityInfo,
		fmt.Sprintf("Account logged in: %s", account.Login),
		map[string]string{"session_id": session.ID},
		audit.WithAccount(account.ID), audit.WithSession(session.ID), audit.WithIP(ip))

	return &decktutor.LoginResult{
		AuthToken:           token,
		AuthTokenExpiration: decktutor.Expiration{Time: session.ExpiresAt},
		AuthTokenSecret:     session.Secret,
		User:                account.User(),
	}, session, nil
}

// createSession creates a new session with a JWT token and a random secret
func (s *Service) createSession(ctx context.Context, account *domain.Account) (*domain.Session, string, error) {
	secret, err := s.random.Hex(16)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.TokenExpiry),
		Status:    domain.SessionStatusActive,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": session.ID,
		"account_id": account.ID,
		"login":      account.Login,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, secret, last_sequence, created_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.AccountID, session.Secret, session.LastSequence,
		session.CreatedAt, session.ExpiresAt, session.Status)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, tokenString, nil
}

// sessionID extracts the session from a token issued by createSession
func (s *Service) sessionID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionNotFound
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrSessionNotFound
	}

	id, ok := claims["session_id"].(string)
	if !ok || id == "" {
		return "", ErrSessionNotFound
	}
	return id, nil
}

// getSession loads a session by ID
func (s *Service) getSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, secret, last_sequence, created_at, expires_at, status
		FROM sessions WHERE id = $1
	`, id).Scan(&session.ID, &session.AccountID, &session.Secret, &session.LastSequence,
		&session.CreatedAt, &session.ExpiresAt, &session.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Authenticate verifies a signed request: the token names an active session,
// the signature matches the session secret, and the sequence is greater than
// any sequence accepted before. The accepted sequence is recorded.
func (s *Service) Authenticate(ctx context.Context, token string, sequence int64, signature, ip string) (*domain.Session, *domain.Account, error) {
	id, err := s.sessionID(token)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != domain.SessionStatusActive {
		return nil, nil, ErrSessionExpired
	}

	if !s.now().Before(session.ExpiresAt) {
		s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
			domain.SessionStatusExpired, session.ID)
		s.audit.Log(ctx, audit.EventSessionExpired, domain.SeverityInfo,
			"Session expired", nil,
			audit.WithAccount(session.AccountID), audit.WithSession(session.ID), audit.WithIP(ip))
		return nil, nil, ErrSessionExpired
	}

	expected := decktutor.Signature(sequence, session.Secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		s.rejectSignature(ctx, session, sequence, "signature mismatch", ip)
		return nil, nil, ErrInvalidSignature
	}

	// the conditional update makes concurrent replays of one sequence lose
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET last_sequence = $1 WHERE id = $2 AND last_sequence < $3",
		sequence, session.ID, sequence)
	if err != nil {
		return nil, nil, fmt.Errorf("database error: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		s.rejectSignature(ctx, session, sequence, "sequence replayed", ip)
		return nil, nil, ErrInvalidSequence
	}
	session.LastSequence = sequence

	account, err := s.GetAccount(ctx, session.AccountID)
	if err != nil {
		return nil, nil, err
	}
	return session, account, nil
}

func (s *Service) rejectSignature(ctx context.Context, session *domain.Session, sequence int64, reason, ip string) {
	s.audit.Log(ctx, audit.EventSignatureRejected, domain.SeverityWarning,
		fmt.Sprintf("Signed request rejected: %s", reason),
		map[string]int64{"sequence": sequence, "last_sequence": session.LastSequence},
		audit.WithAccount(session.AccountID), audit.WithSession(session.ID), audit.WithIP(ip))
}

// Logout terminates a session
func (s *Service) Logout(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
		domain.SessionStatusLoggedOut, session.ID)
	if err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventLogout, domain.SeverityInfo,
		"Account logged out",
		map[string]string{"session_id": session.ID},
		audit.WithAccount(session.AccountID), audit.WithSession(session.ID))

	return nil
}

// recordFailedLogin records a failed login attempt
func (s *Service) recordFailedLogin(ctx context.Context, login, ip string) {
	s.audit.Log(ctx, audit.EventLoginFailed, domain.SeverityWarning,
		fmt.Sprintf("Failed login for %s", login),
		map[string]string{"login": login}, audit.WithIP(ip))
}

func (s *Service) randomDigit() (int, error) {
	n, err := s.random.Between(1, 9)
	if err != nil {
		return 0, fmt.Errorf("failed to generate captcha: %w", err)
	}
	return int(n), nil
}
