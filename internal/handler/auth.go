// Package handler contains the HTTP layer: request parsing, calling the
// service layer, and mapping results (or domain errors) onto JSON
// responses. No business rules live here.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/dead-poets-society/internal/apperror"
	"github.com/sakif/dead-poets-society/internal/auth"
	"github.com/sakif/dead-poets-society/internal/service"
)

// AuthHandler exposes identity endpoints: registration, login, and
// public profile lookup.
type AuthHandler struct {
	auths  *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auths *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auths: auths, logger: logger}
}

// credentialsRequest is the body for both register and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /identities
// BODY: {"username": "alice", "password": "secret..."}
//
// Responds 201 on success. The response carries no sensitive data —
// just an acknowledgement, like the original API.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if _, err := h.auths.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
	})
}

// HandleLogin verifies credentials and issues a bearer token.
//
// HTTP: POST /identities/session
// BODY: {"username": "alice", "password": "secret..."}
//
// RESPONSE: {"token": "<jwt>", "user": {...public profile...}}
// The client sends the token back as "Authorization: Bearer <jwt>".
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.auths.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}

// HandleMe returns the caller's own public profile.
//
// HTTP: GET /identities/me (auth required)
//
// The identity comes from the request context, put there by the auth
// middleware — handlers never parse the Authorization header themselves.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleGetUser returns another user's public profile.
//
// HTTP: GET /identities/{id} (auth required)
func (h *AuthHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.auths.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
