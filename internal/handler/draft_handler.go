package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/service"
)

type DraftHandler struct {
	draftService *service.DraftService
}

func NewDraftHandler(draftService *service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

func writeDraftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Draft not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetDraft возвращает черновик
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	draft, err := h.draftService.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeDraftError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(draft)
}

// SaveDraft сохраняет контент черновика; привязка ассетов обновляется
// GC-проходом на каждом сохранении
func (h *DraftHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Content   string     `json:"content"`
		CoverURL  string     `json:"cover_url"`
		ExpiresAt *time.Time `json:"expires_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	draft, track, err := h.draftService.Save(r.Context(), tenantID, chi.URLParam(r, "id"), req.Content, req.CoverURL, req.ExpiresAt)
	if err != nil {
		log.Printf("Failed to save draft: %v", err)
		writeDraftError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"draft":    draft,
		"tracking": track,
	})
}

// PublishDraft переносит ассеты черновика на публикацию
func (h *DraftHandler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PostID string `json:"post_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	moved, err := h.draftService.Publish(r.Context(), tenantID, chi.URLParam(r, "id"), req.PostID)
	if err != nil {
		log.Printf("Failed to publish draft: %v", err)
		writeDraftError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"transferred_assets": moved})
}
