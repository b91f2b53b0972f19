package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/adops/internal/editor"
)

// EditorHandler implements the editor session endpoints.
type EditorHandler struct {
	sessions *editor.Manager
}

// NewEditorHandler creates a new EditorHandler.
func NewEditorHandler(sessions *editor.Manager) *EditorHandler {
	return &EditorHandler{sessions: sessions}
}

type createSessionRequest struct {
	CampaignID string `json:"campaign_id,omitempty"`
}

// HandleCreate opens a session: a new campaign, or an edit session for
// campaign_id when set.
// POST /api/editor/sessions
func (h *EditorHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	var sess *editor.Session
	if req.CampaignID == "" {
		sess = h.sessions.Create(r.Context())
	} else {
		var err error
		if sess, err = h.sessions.Open(r.Context(), req.CampaignID); err != nil {
			domainErrorToHTTP(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusCreated, sess.View())
}

// HandleGet returns the current view of a session.
// GET /api/editor/sessions/{id}
func (h *EditorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sess.View())
}

// HandleDiscard closes a session without saving.
// DELETE /api/editor/sessions/{id}
func (h *EditorHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		domainErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmit validates and persists a session. Details in the body, if
// any, replace the session's details first.
// POST /api/editor/sessions/{id}/submit
func (h *EditorHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		domainErrorToHTTP(w, r, err)
		return
	}

	var req struct {
		Details *editor.Details `json:"details,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.Details != nil {
		sess.SetDetails(*req.Details)
	}

	rcpt, err := h.sessions.Submit(r.Context(), id)
	if err != nil {
		domainErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rcpt)
}
