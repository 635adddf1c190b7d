// Package api provides the sandbox HTTP handlers: a local emulation of the
// DeckTutor webservice
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexbotov/decktutor/internal/auth"
	"github.com/alexbotov/decktutor/internal/catalog"
	"github.com/alexbotov/decktutor/internal/settings"
	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const maxConfigSize = 64 << 10

// Handler contains all HTTP handlers
type Handler struct {
	db       *sql.DB
	auth     *auth.Service
	settings *settings.Service
	catalog  *catalog.Service
	metrics  *Metrics
	log      zerolog.Logger
}

// New creates a new API handler
func New(db *sql.DB, authSvc *auth.Service, settingsSvc *settings.Service, catalogSvc *catalog.Service, log zerolog.Logger) *Handler {
	return &Handler{
		db:       db,
		auth:     authSvc,
		settings: settingsSvc,
		catalog:  catalogSvc,
		metrics:  NewMetrics(),
		log:      log,
	}
}

// Response helpers. Successful answers are the bare JSON result with status
// 200; failures carry a decktutor.APIError body.

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondEmpty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &decktutor.APIError{
		Code:    code,
		Message: message,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	respondError(w, http.StatusInternalServerError, decktutor.ErrCodeUnexpected, msg)
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	// Check X-Real-IP header
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// === Health ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.db.PingContext(r.Context()); err != nil {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
	})
}

// === Account ===

// CreateCaptcha handles POST /sys/createCaptha
func (h *Handler) CreateCaptcha(w http.ResponseWriter, r *http.Request) {
	captcha, err := h.auth.CreateCaptcha(r.Context())
	if err != nil {
		h.internalError(w, err, "Failed to create captcha")
		return
	}

	respondJSON(w, http.StatusOK, &decktutor.Captcha{
		Code:      captcha.Code,
		Challenge: captcha.Question,
	})
}

// Register handles POST /account/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req decktutor.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	account, err := h.auth.Register(r.Context(), &req, getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			respondError(w, http.StatusConflict, decktutor.ErrCodeUserExists, "Login or email already exists")
		case errors.Is(err, auth.ErrInvalidCaptcha):
			respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidCaptcha, "Invalid or expired captcha")
		default:
			respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, account.User())
}

// Login handles POST /account/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req decktutor.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	result, _, err := h.auth.Login(r.Context(), req.Login, req.Password, getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, decktutor.ErrCodeInvalidCredentials, "Invalid login or password")
		case errors.Is(err, auth.ErrAccountNotActive):
			respondError(w, http.StatusForbidden, decktutor.ErrCodeNotAuthorized, "Account is not active")
		default:
			h.internalError(w, err, "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Logout handles DELETE /account/login
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionFrom(r.Context())); err != nil {
		h.internalError(w, err, "Logout failed")
		return
	}
	respondEmpty(w)
}

// GetLogin handles GET /account/login. Anonymous callers get null.
func (h *Handler) GetLogin(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	if account == nil {
		respondJSON(w, http.StatusOK, nil)
		return
	}
	respondJSON(w, http.StatusOK, account.Login)
}

// === Config ===

func configKey(r *http.Request) (string, bool) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (h *Handler) configError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalidKey), errors.Is(err, settings.ErrInvalidValue):
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, err.Error())
	default:
		h.internalError(w, err, "Config storage failed")
	}
}

// LoadConfig handles GET /account/config/{key}. A missing key is null.
func (h *Handler) LoadConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := configKey(r)
	if !ok {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid config key")
		return
	}

	value, err := h.settings.Load(r.Context(), accountFrom(r.Context()).ID, key)
	if err != nil {
		h.configError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, value)
}

// StoreConfig handles PUT /account/config/{key}
func (h *Handler) StoreConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := configKey(r)
	if !ok {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid config key")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Config value too large")
		return
	}

	err = h.settings.Store(r.Context(), accountFrom(r.Context()).ID, key, body, getClientIP(r))
	if err != nil {
		h.configError(w, err)
		return
	}
	respondEmpty(w)
}

// DeleteConfig handles DELETE /account/config/{key}
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := configKey(r)
	if !ok {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid config key")
		return
	}

	if err := h.settings.Delete(r.Context(), accountFrom(r.Context()).ID, key, getClientIP(r)); err != nil {
		h.configError(w, err)
		return
	}
	respondEmpty(w)
}

// === Search ===

func (h *Handler) searchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, decktutor.ErrUnknownGame),
		errors.Is(err, decktutor.ErrInvalidOrder),
		errors.Is(err, catalog.ErrInvalidRange):
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, err.Error())
	default:
		h.internalError(w, err, "Search failed")
	}
}

// intParam parses an optional integer query parameter
func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// FindCardNames handles GET /search/card/name
func (h *Handler) FindCardNames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid limit")
		return
	}

	names, err := h.catalog.FindNames(r.Context(), gameParam(q), q.Get("query"), limit)
	if err != nil {
		h.searchError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

// FindCardVersions handles GET /search/card/version
func (h *Handler) FindCardVersions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q, "offset")
	if err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid offset")
		return
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid limit")
		return
	}
	order, err := decktutor.ParseOrder(q.Get("order"))
	if err != nil {
		h.searchError(w, err)
		return
	}

	versions, err := h.catalog.FindVersions(r.Context(), &catalog.VersionQuery{
		Game:   gameParam(q),
		Name:   q.Get("name"),
		Set:    q.Get("set"),
		Offset: offset,
		Limit:  limit,
		Order:  order,
	})
	if err != nil {
		h.searchError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

// Serp handles POST /search/serp
func (h *Handler) Serp(w http.ResponseWriter, r *http.Request) {
	var req decktutor.SerpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, decktutor.ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	listings, err := h.catalog.Serp(r.Context(), &req)
	if err != nil {
		h.searchError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

func gameParam(q url.Values) decktutor.Game {
	if game := q.Get("game"); game != "" {
		return decktutor.Game(game)
	}
	return decktutor.DefaultGame
}
