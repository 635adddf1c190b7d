// Package api - Router setup
package api

import (
	"net/http"

	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/gorilla/mux"
)

// DefaultPrefix is the path the webservice is mounted under
const DefaultPrefix = "/ws-1.2/app/v1"

// SetupRouter creates and configures the HTTP router, with the webservice
// mounted under prefix
func (h *Handler) SetupRouter(prefix string) *mux.Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	r := mux.NewRouter()
	// config keys arrive path-escaped and may contain slashes
	r.UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowedHandler)

	// Apply global middleware
	r.Use(h.RecoveryMiddleware)
	r.Use(h.LoggingMiddleware)

	// Public routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", h.metrics.Handler()).Methods("GET")

	ws := r.PathPrefix(prefix).Subrouter()
	ws.Use(h.SignatureMiddleware)

	// Anonymous or signed
	ws.HandleFunc("/sys/createCaptha", h.CreateCaptcha).Methods("POST")
	ws.HandleFunc("/account/register", h.Register).Methods("POST")
	ws.HandleFunc("/account/login", h.Login).Methods("POST")
	ws.HandleFunc("/account/login", h.GetLogin).Methods("GET")
	ws.HandleFunc("/search/card/name", h.FindCardNames).Methods("GET")
	ws.HandleFunc("/search/card/version", h.FindCardVersions).Methods("GET")
	ws.HandleFunc("/search/serp", h.Serp).Methods("POST")

	// Signed only
	protected := ws.PathPrefix("").Subrouter()
	protected.Use(h.RequireSession)

	protected.HandleFunc("/account/login", h.Logout).Methods("DELETE")
	protected.HandleFunc("/account/config/{key}", h.LoadConfig).Methods("GET")
	protected.HandleFunc("/account/config/{key}", h.StoreConfig).Methods("PUT")
	protected.HandleFunc("/account/config/{key}", h.DeleteConfig).Methods("DELETE")

	return r
}

// Routes returns the router wrapped for browser callers
func (h *Handler) Routes(prefix string) http.Handler {
	return CORS(h.SetupRouter(prefix))
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, decktutor.ErrCodeNotFound, "Resource not found")
}

// MethodNotAllowedHandler handles 405 errors
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, decktutor.ErrCodeInvalidRequest, "Method not allowed")
}
