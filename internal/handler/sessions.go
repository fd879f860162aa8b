package handler

import (
	"log/slog"
	"net/http"
	"time"

	"quillvault/internal/content"
	"quillvault/internal/domain/models"
	"quillvault/internal/httputil"
	"quillvault/internal/service"
)

// SessionHandler handles editor session HTTP requests
type SessionHandler struct {
	sessions *service.SessionManager
	docs     *service.DocumentService
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionManager, docs *service.DocumentService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		docs:     docs,
		logger:   logger,
	}
}

type sessionResponse struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Dirty          bool   `json:"dirty"`
	WordCount      int    `json:"word_count"`
	CharacterCount int    `json:"character_count"`
}

func sessionView(s *service.EditorSession) sessionResponse {
	plain := s.Editor.PlainText()
	return sessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		Dirty:          s.Engine.HasUnsavedChanges(),
		WordCount:      content.CountWords(plain),
		CharacterCount: content.CountChars(plain),
	}
}

// CreateSession opens a new editor session for the authenticated user
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	session, err := h.sessions.Create(userID)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("editor session created", "session_id", session.ID, "user_id", userID)
	httputil.RespondJSON(w, http.StatusCreated, sessionView(session))
}

// GetSession reports a session's dirty state and counts
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sessionView(session))
}

// CloseSession tears a session down
// DELETE /api/sessions/{id}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateContentRequest struct {
	Delta *models.Delta `json:"delta,omitempty"`
	HTML  *string       `json:"html,omitempty"`
}

// UpdateContent replaces the session's buffer with a delta, or with raw
// markup when the client has no delta form
// PUT /api/sessions/{id}/content
func (h *SessionHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	var req updateContentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.Delta != nil:
		session.Editor.SetContents(*req.Delta)
	case req.HTML != nil:
		session.Editor.SetHTML(*req.HTML)
	default:
		httputil.RespondError(w, http.StatusBadRequest, "either delta or html is required")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sessionView(session))
}

type saveRequest struct {
	Key    string                   `json:"key"`
	Config models.SaveConfiguration `json:"config"`
}

// Save persists the session's content under a caller-supplied key
// POST /api/sessions/{id}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Key == "" {
		httputil.RespondError(w, http.StatusBadRequest, "key is required")
		return
	}

	result, err := h.docs.Save(r.Context(), r.PathValue("id"), req.Key, req.Config)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

type loadRequest struct {
	Key string `json:"key"`
}

// Load applies a persisted version to the session's buffer
// POST /api/sessions/{id}/load
func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	var req loadRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Key == "" {
		httputil.RespondError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := session.Engine.Load(r.Context(), req.Key); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sessionView(session))
}

type engineConfigRequest struct {
	AutoSave           *bool   `json:"auto_save,omitempty"`
	AutoSaveIntervalMS *int64  `json:"auto_save_interval_ms,omitempty"`
	EncryptContent     *bool   `json:"encrypt_content,omitempty"`
	Topic              *string `json:"topic,omitempty"`
}

// UpdateEngineConfig merges a partial configuration into the session's
// persistence engine
// PATCH /api/sessions/{id}/config
func (h *SessionHandler) UpdateEngineConfig(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	var req engineConfigRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := service.EngineConfigPatch{
		AutoSave:       req.AutoSave,
		EncryptContent: req.EncryptContent,
		Topic:          req.Topic,
	}
	if req.AutoSaveIntervalMS != nil {
		if *req.AutoSaveIntervalMS <= 0 {
			httputil.RespondError(w, http.StatusBadRequest, "auto_save_interval_ms must be positive")
			return
		}
		interval := time.Duration(*req.AutoSaveIntervalMS) * time.Millisecond
		patch.AutoSaveInterval = &interval
	}

	session.Engine.UpdateConfig(patch)
	httputil.RespondJSON(w, http.StatusOK, sessionView(session))
}
