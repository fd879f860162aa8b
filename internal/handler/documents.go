package handler

import (
	"log/slog"
	"net/http"
	"time"

	"quillvault/internal/domain/models"
	"quillvault/internal/httputil"
	"quillvault/internal/service"
)

// DocumentHandler handles persisted-document HTTP requests
type DocumentHandler struct {
	docs   *service.DocumentService
	logger *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docs *service.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docs:   docs,
		logger: logger,
	}
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *DocumentHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}

type estimateRequest struct {
	Config models.SaveConfiguration `json:"config"`
}

type estimateResponse struct {
	Cost models.Money `json:"cost"`
}

// Estimate prices a save under a configuration without performing it
// POST /api/estimates
func (h *DocumentHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cost, err := h.docs.EstimateSave(req.Config)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, estimateResponse{Cost: cost})
}

// ListDocuments enumerates persisted versions with display metadata
// GET /api/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	listings, err := h.docs.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": listings,
		"total":     len(listings),
	})
}

// GetDocument returns a gated view of one persisted version: the full
// body when unlocked, the preview slice when partially paid, and the
// bare decision when locked
// GET /api/documents/{key}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	result, err := h.docs.Read(r.Context(), httputil.GetUserID(r), r.PathValue("key"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// DeleteDocument removes one persisted version
// DELETE /api/documents/{key}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), r.PathValue("key")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportMarkdown renders one version as markdown with frontmatter;
// requires full access
// GET /api/documents/{key}/export
func (h *DocumentHandler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	markdown, err := h.docs.ExportMarkdown(r.Context(), httputil.GetUserID(r), r.PathValue("key"))
	if err != nil {
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markdown))
}

// Mint submits the stored monetization terms to the chain broadcaster
// POST /api/documents/{key}/mint
func (h *DocumentHandler) Mint(w http.ResponseWriter, r *http.Request) {
	result, err := h.docs.Mint(r.Context(), r.PathValue("key"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

type paymentRequest struct {
	Amount models.Money `json:"amount"`
}

// RecordPayment records a payment receipt the reader can present to the
// access gate
// POST /api/documents/{key}/receipts
func (h *DocumentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	receipt := h.docs.RecordPayment(r.PathValue("key"), httputil.GetUserID(r), req.Amount)
	httputil.RespondJSON(w, http.StatusCreated, receipt)
}
