package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// writeUploadError переводит ошибки учётного ядра в HTTP-статусы.
// Ответ на превышение квоты содержит машинно-читаемые цифры
func writeUploadError(w http.ResponseWriter, err error) {
	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInsufficientStorage)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "quota_exceeded",
			"quota": quotaErr,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidUpload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Asset not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		http.Error(w, "Object storage unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Presign обрабатывает запрос на выдачу presigned URL для загрузки
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		MIMEType string `json:"mime_type"`
		Kind     string `json:"kind"`
		OwnerID  string `json:"owner_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.uploadService.Presign(r.Context(), tenantID, req.Filename, req.Size, req.MIMEType, req.Kind, req.OwnerID)
	if err != nil {
		log.Printf("Failed to presign upload for tenant %s: %v", tenantID, err)
		writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Complete обрабатывает подтверждение завершенной загрузки
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ObjectKey string `json:"object_key"`
		OwnerID   string `json:"owner_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.uploadService.Complete(r.Context(), tenantID, req.ObjectKey, req.OwnerID)
	if err != nil {
		log.Printf("Failed to complete upload %s: %v", req.ObjectKey, err)
		writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Abort обрабатывает отмену загрузки
func (h *UploadHandler) Abort(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ObjectKey string `json:"object_key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.uploadService.Abort(r.Context(), tenantID, req.ObjectKey); err != nil {
		log.Printf("Failed to abort upload %s: %v", req.ObjectKey, err)
		writeUploadError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
