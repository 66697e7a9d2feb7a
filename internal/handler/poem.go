package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/dead-poets-society/internal/apperror"
	"github.com/sakif/dead-poets-society/internal/auth"
	"github.com/sakif/dead-poets-society/internal/service"
)

// PoemHandler exposes the poem, like, and comment endpoints. Every
// route is behind the auth middleware; the caller's identity is read
// from the request context and passed to the service explicitly.
type PoemHandler struct {
	poems  *service.PoemService
	logger *slog.Logger
}

// NewPoemHandler creates a PoemHandler.
func NewPoemHandler(poems *service.PoemService, logger *slog.Logger) *PoemHandler {
	return &PoemHandler{poems: poems, logger: logger}
}

// callerID extracts the authenticated user from the request context.
// Behind RequireAuth this always succeeds; the ok check catches a route
// accidentally registered outside the guard.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return "", false
	}
	return userID, true
}

type poemRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// HandleList returns all poems, newest first, each annotated with the
// caller's like state.
//
// HTTP: GET /poems
func (h *PoemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	poems, err := h.poems.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poems)
}

// HandleListMine returns the caller's own poems, newest first.
//
// HTTP: GET /poems/mine
func (h *PoemHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	poems, err := h.poems.ListByAuthor(r.Context(), userID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poems)
}

// HandleListByUser returns a given user's poems, newest first.
//
// HTTP: GET /poems/by/{userId}
func (h *PoemHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	poems, err := h.poems.ListByAuthor(r.Context(), userID, r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poems)
}

// HandleCreate publishes a new poem owned by the caller.
//
// HTTP: POST /poems
// BODY: {"title": "Ode", "content": "line one"}
func (h *PoemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req poemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	poem, err := h.poems.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, poem)
}

// HandleUpdate edits a poem's title and content. Owner only.
//
// HTTP: PUT /poems/{id}
func (h *PoemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req poemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	poem, err := h.poems.Update(r.Context(), userID, r.PathValue("id"), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poem)
}

// HandleDelete removes a poem and all its comments. Owner only.
//
// HTTP: DELETE /poems/{id}
func (h *PoemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.poems.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Poem removed"})
}

// HandleToggleLike flips the caller's like on a poem.
//
// HTTP: POST /poems/{id}/likes
// RESPONSE: {"likes": 3, "isLiked": true}
func (h *PoemHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	state, err := h.poems.ToggleLike(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"likes":   state.Likes,
		"isLiked": state.IsLiked,
	})
}

// HandleAddComment appends a comment to a poem.
//
// HTTP: POST /poems/{id}/comments
// BODY: {"content": "nice"}
//
// Responds 201 with the created comment, including its assigned id and
// timestamp.
func (h *PoemHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	comment, err := h.poems.AddComment(r.Context(), userID, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// HandleDeleteComment removes one comment. Allowed for the comment's
// author and the poem's owner.
//
// HTTP: DELETE /poems/{id}/comments/{commentId}
func (h *PoemHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	err := h.poems.DeleteComment(r.Context(), userID, r.PathValue("id"), r.PathValue("commentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment removed"})
}
