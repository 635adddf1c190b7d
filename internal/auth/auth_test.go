package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexbotov/decktutor/internal/audit"
	"github.com/alexbotov/decktutor/internal/config"
	"github.com/alexbotov/decktutor/internal/database"
	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/jonboulle/clockwork"
)

type testEnv struct {
	svc   *Service
	audit *audit.Service
	clock *clockwork.FakeClock
}

func setupTestAuth(t *testing.T, requireCaptcha bool) *testEnv {
	t.Helper()

	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	auditSvc := audit.NewWithClock(db.DB, clock)
	cfg := &config.AuthConfig{
		JWTSecret:       "test-secret",
		TokenExpiry:     time.Hour,
		RequireCaptcha:  requireCaptcha,
		MinPasswordSize: 8,
	}

	return &testEnv{
		svc:   New(db.DB, cfg, auditSvc, clock),
		audit: auditSvc,
		clock: clock,
	}
}

func testRegistration(login string) *decktutor.RegisterRequest {
	return &decktutor.RegisterRequest{
		Registration: decktutor.Registration{
			Privacy: true,
			User: decktutor.Account{
				Login:    login,
				Password: "password123",
				Email:    login + "@example.com",
			},
			Person:  decktutor.Person{FirstName: "Test", LastName: "User"},
			Address: decktutor.Address{City: "Milano", Country: "IT"},
			Prefs:   map[string]any{"language": "it"},
		},
	}
}

// solve answers an "a + b" captcha
func solve(t *testing.T, question string) string {
	t.Helper()
	var a, b int
	if _, err := fmt.Sscanf(question, "%d + %d", &a, &b); err != nil {
		t.Fatalf("Unexpected captcha question %q: %v", question, err)
	}
	return strconv.Itoa(a + b)
}

func TestRegister_Success(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()

	account, err := env.svc.Register(ctx, testRegistration("nick"), "10.0.0.1")
	if err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	if account.ID == "" {
		t.Error("Account ID should not be empty")
	}
	if account.PasswordHash == "password123" {
		t.Error("Password should be hashed")
	}

	loaded, err := env.svc.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if loaded.Person.FirstName != "Test" || loaded.Address.City != "Milano" {
		t.Errorf("Unexpected stored account %+v", loaded)
	}
	if loaded.User().Language != "it" {
		t.Errorf("Expected prefs language it, got %q", loaded.User().Language)
	}

	events, _ := env.audit.GetEvents(ctx, &audit.EventFilter{Type: audit.EventAccountRegistered})
	if len(events) != 1 {
		t.Errorf("Expected 1 registration event, got %d", len(events))
	}
}

func TestRegister_Validation(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*decktutor.RegisterRequest)
		err    error
	}{
		{"missing login", func(r *decktutor.RegisterRequest) { r.User.Login = "" }, nil},
		{"short password", func(r *decktutor.RegisterRequest) { r.User.Password = "short" }, nil},
		{"privacy not accepted", func(r *decktutor.RegisterRequest) { r.Privacy = false }, ErrPrivacyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRegistration("val")
			tt.modify(req)
			_, err := env.svc.Register(ctx, req, "")
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, testRegistration("dup"), ""); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	_, err := env.svc.Register(ctx, testRegistration("dup"), "")
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("Expected ErrUserExists, got %v", err)
	}
}

func TestRegister_Captcha(t *testing.T) {
	env := setupTestAuth(t, true)
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		_, err := env.svc.Register(ctx, testRegistration("nocaptcha"), "")
		if !errors.Is(err, ErrInvalidCaptcha) {
			t.Errorf("Expected ErrInvalidCaptcha, got %v", err)
		}
	})

	t.Run("WrongAnswerConsumesCaptcha", func(t *testing.T) {
		captcha, err := env.svc.CreateCaptcha(ctx)
		if err != nil {
			t.Fatalf("CreateCaptcha failed: %v", err)
		}

		req := testRegistration("wrong")
		req.CaptchaCode = captcha.Code
		req.CaptchaAnswer = "99"
		if _, err := env.svc.Register(ctx, req, ""); !errors.Is(err, ErrInvalidCaptcha) {
			t.Fatalf("Expected ErrInvalidCaptcha, got %v", err)
		}

		req.CaptchaAnswer = solve(t, captcha.Question)
		if _, err := env.svc.Register(ctx, req, ""); !errors.Is(err, ErrInvalidCaptcha) {
			t.Errorf("A captcha must not be usable twice, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		captcha, _ := env.svc.CreateCaptcha(ctx)
		env.clock.Advance(captchaTTL + time.Second)

		req := testRegistration("late")
		req.CaptchaCode = captcha.Code
		req.CaptchaAnswer = solve(t, captcha.Question)
		if _, err := env.svc.Register(ctx, req, ""); !errors.Is(err, ErrInvalidCaptcha) {
			t.Errorf("Expected ErrInvalidCaptcha, got %v", err)
		}
	})

	t.Run("Correct", func(t *testing.T) {
		captcha, _ := env.svc.CreateCaptcha(ctx)

		req := testRegistration("human")
		req.CaptchaCode = captcha.Code
		req.CaptchaAnswer = " " + solve(t, captcha.Question) + " "
		if _, err := env.svc.Register(ctx, req, ""); err != nil {
			t.Errorf("Registration failed: %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()
	env.svc.Register(ctx, testRegistration("nick"), "")

	result, session, err := env.svc.Login(ctx, "nick", "password123", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AuthToken == "" || result.AuthTokenSecret == "" {
		t.Error("Expected token and secret")
	}
	if result.User == nil || result.User.Login != "nick" {
		t.Errorf("Unexpected user %+v", result.User)
	}
	if !result.AuthTokenExpiration.Equal(env.clock.Now().Add(time.Hour)) {
		t.Errorf("Unexpected expiration %v", result.AuthTokenExpiration)
	}
	if session.LastSequence != 0 {
		t.Errorf("Expected fresh session, got last sequence %d", session.LastSequence)
	}

	t.Run("WrongPassword", func(t *testing.T) {
		_, _, err := env.svc.Login(ctx, "nick", "wrong-password", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("UnknownLogin", func(t *testing.T) {
		_, _, err := env.svc.Login(ctx, "ghost", "password123", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
		events, _ := env.audit.GetEvents(ctx, &audit.EventFilter{Type: audit.EventLoginFailed})
		if len(events) < 2 {
			t.Errorf("Expected failed logins to be audited, got %d", len(events))
		}
	})
}

func loggedIn(t *testing.T, env *testEnv) *decktutor.LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, testRegistration("signer"), ""); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	result, _, err := env.svc.Login(ctx, "signer", "password123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result
}

func TestAuthenticate(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()
	login := loggedIn(t, env)

	for seq := int64(1); seq <= 3; seq++ {
		session, account, err := env.svc.Authenticate(ctx, login.AuthToken, seq,
			decktutor.Signature(seq, login.AuthTokenSecret), "")
		if err != nil {
			t.Fatalf("Sequence %d rejected: %v", seq, err)
		}
		if session.LastSequence != seq {
			t.Errorf("Expected last sequence %d, got %d", seq, session.LastSequence)
		}
		if account.Login != "signer" {
			t.Errorf("Expected account signer, got %s", account.Login)
		}
	}

	t.Run("UppercaseSignature", func(t *testing.T) {
		sig := strings.ToUpper(decktutor.Signature(4, login.AuthTokenSecret))
		if _, _, err := env.svc.Authenticate(ctx, login.AuthToken, 4, sig, ""); err != nil {
			t.Errorf("Expected hex case to be ignored, got %v", err)
		}
	})

	t.Run("Replay", func(t *testing.T) {
		_, _, err := env.svc.Authenticate(ctx, login.AuthToken, 2,
			decktutor.Signature(2, login.AuthTokenSecret), "")
		if !errors.Is(err, ErrInvalidSequence) {
			t.Errorf("Expected ErrInvalidSequence, got %v", err)
		}
	})

	t.Run("Gap", func(t *testing.T) {
		// sequences only need to grow
		_, _, err := env.svc.Authenticate(ctx, login.AuthToken, 10,
			decktutor.Signature(10, login.AuthTokenSecret), "")
		if err != nil {
			t.Errorf("Expected a skipped sequence to be accepted, got %v", err)
		}
	})

	t.Run("BadSignature", func(t *testing.T) {
		_, _, err := env.svc.Authenticate(ctx, login.AuthToken, 11,
			decktutor.Signature(11, "not-the-secret"), "")
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
		events, _ := env.audit.GetEvents(ctx, &audit.EventFilter{Type: audit.EventSignatureRejected})
		if len(events) == 0 {
			t.Error("Expected rejected signature to be audited")
		}
	})

	t.Run("ForeignToken", func(t *testing.T) {
		_, _, err := env.svc.Authenticate(ctx, "not-a-jwt", 12, "", "")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestAuthenticate_ConcurrentReplay(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()
	login := loggedIn(t, env)

	sig := decktutor.Signature(1, login.AuthTokenSecret)
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := env.svc.Authenticate(ctx, login.AuthToken, 1, sig, ""); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("Expected exactly one acceptance of sequence 1, got %d", accepted)
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()
	login := loggedIn(t, env)

	env.clock.Advance(2 * time.Hour)

	_, _, err := env.svc.Authenticate(ctx, login.AuthToken, 1,
		decktutor.Signature(1, login.AuthTokenSecret), "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Expected ErrSessionExpired, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	env := setupTestAuth(t, false)
	ctx := context.Background()
	login := loggedIn(t, env)

	session, _, err := env.svc.Authenticate(ctx, login.AuthToken, 1,
		decktutor.Signature(1, login.AuthTokenSecret), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := env.svc.Logout(ctx, session); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	_, _, err = env.svc.Authenticate(ctx, login.AuthToken, 2,
		decktutor.Signature(2, login.AuthTokenSecret), "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Expected ErrSessionExpired after logout, got %v", err)
	}

	stored, _ := env.svc.getSession(ctx, session.ID)
	if stored.Status != domain.SessionStatusLoggedOut {
		t.Errorf("Expected status logged_out, got %s", stored.Status)
	}
}
