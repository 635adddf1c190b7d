// Package api - Middleware for request signatures and request processing
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alexbotov/decktutor/internal/auth"
	"github.com/alexbotov/decktutor/internal/domain"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/rs/cors"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	accountKey contextKey = "account"
)

func sessionFrom(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(sessionKey).(*domain.Session)
	return session
}

func accountFrom(ctx context.Context) *domain.Account {
	account, _ := ctx.Value(accountKey).(*domain.Account)
	return account
}

// SignatureMiddleware verifies signed requests and adds the session and
// account to the context. Requests without an auth token pass through
// anonymously.
func (h *Handler) SignatureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(decktutor.HeaderAuthToken)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sequence, err := strconv.ParseInt(r.Header.Get(decktutor.HeaderSequence), 10, 64)
		if err != nil || sequence <= 0 {
			h.metrics.signatureFailure("bad_sequence_header")
			respondError(w, http.StatusUnauthorized, decktutor.ErrCodeInvalidSequence, "Missing or malformed sequence header")
			return
		}

		session, account, err := h.auth.Authenticate(r.Context(), token, sequence,
			r.Header.Get(decktutor.HeaderSignature), getClientIP(r))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionExpired):
				h.metrics.signatureFailure("session_expired")
				respondError(w, http.StatusUnauthorized, decktutor.ErrCodeSessionExpired, "Session has expired")
			case errors.Is(err, auth.ErrSessionNotFound):
				h.metrics.signatureFailure("unknown_token")
				respondError(w, http.StatusUnauthorized, decktutor.ErrCodeNotAuthorized, "Unknown auth token")
			case errors.Is(err, auth.ErrInvalidSignature):
				h.metrics.signatureFailure("signature_mismatch")
				respondError(w, http.StatusUnauthorized, decktutor.ErrCodeInvalidSignature, "Invalid request signature")
			case errors.Is(err, auth.ErrInvalidSequence):
				h.metrics.signatureFailure("sequence_replayed")
				respondError(w, http.StatusUnauthorized, decktutor.ErrCodeInvalidSequence, "Sequence number already used")
			default:
				h.log.Error().Err(err).Msg("failed to authenticate request")
				respondError(w, http.StatusInternalServerError, decktutor.ErrCodeUnexpected, "Internal server error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		ctx = context.WithValue(ctx, accountKey, account)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects anonymous requests
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, decktutor.ErrCodeNotAuthorized, "Signed request required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs every request and records its metrics
func (h *Handler) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeName(r)
		h.metrics.observe(route, r.Method, rec.status, elapsed)
		h.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// RecoveryMiddleware recovers from panics
func (h *Handler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("recovered from panic")
				respondError(w, http.StatusInternalServerError, decktutor.ErrCodeUnexpected, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS lets browser clients call the sandbox and send the signature headers
func CORS(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{
			"Content-Type",
			decktutor.HeaderAuthToken,
			decktutor.HeaderSequence,
			decktutor.HeaderSignature,
		},
	})
	return c.Handler(next)
}
