package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
	"mediavault/internal/service/s3"
)

const assetKeyPrefix = "content_assets"

// UploadPolicy задает правила валидации presign-запросов
type UploadPolicy struct {
	MaxUploadBytes   int64
	AllowedMIMETypes []string
	URLTTL           time.Duration
	PublicBaseURL    string
}

// DefaultUploadPolicy возвращает политику по умолчанию: 2MB, только
// изображения, 5 минут на загрузку
func DefaultUploadPolicy(publicBaseURL string) UploadPolicy {
	return UploadPolicy{
		MaxUploadBytes:   2 * 1024 * 1024,
		AllowedMIMETypes: []string{"image/jpeg", "image/png", "image/webp"},
		URLTTL:           5 * time.Minute,
		PublicBaseURL:    publicBaseURL,
	}
}

func (p UploadPolicy) allowsMIME(mimeType string) bool {
	for _, allowed := range p.AllowedMIMETypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// UploadService управляет жизненным циклом загрузки:
// presign -> complete либо abort. Байты файла через сервис не проходят,
// клиент загружает их напрямую в хранилище по presigned URL
type UploadService struct {
	assets       AssetStore
	quotaService *QuotaService
	s3Client     s3.Storage
	policy       UploadPolicy
}

func NewUploadService(assets AssetStore, quotaService *QuotaService, s3Client s3.Storage, policy UploadPolicy) *UploadService {
	return &UploadService{
		assets:       assets,
		quotaService: quotaService,
		s3Client:     s3Client,
		policy:       policy,
	}
}

// PublicURL возвращает публичный адрес объекта по его ключу
func (s *UploadService) PublicURL(objectKey string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(s.policy.PublicBaseURL, "/"), objectKey)
}

// Presign валидирует запрос, резервирует квоту, создает запись ассета
// и выдает presigned URL
func (s *UploadService) Presign(ctx context.Context, tenantID, filename string, declaredSize int64, mimeType, kind, ownerID string) (*domain.PresignResult, error) {
	if declaredSize <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", domain.ErrInvalidUpload, declaredSize)
	}
	if declaredSize > s.policy.MaxUploadBytes {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", domain.ErrInvalidUpload, declaredSize, s.policy.MaxUploadBytes)
	}
	if !s.policy.allowsMIME(mimeType) {
		return nil, fmt.Errorf("%w: mime type %q is not allowed", domain.ErrInvalidUpload, mimeType)
	}

	// Квота резервируется до передачи байтов
	if err := s.quotaService.Reserve(ctx, tenantID, declaredSize); err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("%s/%s/%s%s", assetKeyPrefix, tenantID, uuid.New().String(), path.Ext(filename))

	asset := domain.NewAsset(tenantID, objectKey, declaredSize, mimeType, kind)
	if ownerID != "" {
		asset.OwnerID = &ownerID
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		// При ошибке снимаем резерв
		if relErr := s.quotaService.Release(ctx, tenantID, declaredSize); relErr != nil {
			log.Printf("[UploadService] Warning: failed to release reservation after create failure: %v", relErr)
		}
		return nil, fmt.Errorf("failed to create asset record: %w", err)
	}

	uploadURL, err := s.s3Client.GenerateUploadURL(ctx, objectKey, mimeType, s.policy.URLTTL)
	if err != nil {
		// Откатываем и запись, и резерв
		if delErr := s.assets.Delete(ctx, asset.ID); delErr != nil {
			log.Printf("[UploadService] Warning: failed to delete asset after presign failure: %v", delErr)
		}
		if relErr := s.quotaService.Release(ctx, tenantID, declaredSize); relErr != nil {
			log.Printf("[UploadService] Warning: failed to release reservation after presign failure: %v", relErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	return &domain.PresignResult{
		AssetID:   asset.ID,
		ObjectKey: objectKey,
		UploadURL: uploadURL,
		PublicURL: s.PublicURL(objectKey),
	}, nil
}

// Complete подтверждает загрузку: спрашивает у хранилища фактические
// метаданные объекта и коммитит квоту. Если HEAD-запрос не удался,
// используем заявленные клиентом значения
func (s *UploadService) Complete(ctx context.Context, tenantID, objectKey, ownerID string) (*domain.CompleteResult, error) {
	asset, err := s.assets.GetByObjectKey(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	if asset.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}

	// Повторный complete не должен коммитить квоту второй раз
	if asset.Status == domain.AssetStatusCompleted {
		return &domain.CompleteResult{
			AssetID:   asset.ID,
			PublicURL: s.PublicURL(objectKey),
		}, nil
	}

	actualSize := asset.DeclaredSizeBytes
	mimeType := asset.MIMEType

	info, err := s.s3Client.HeadObject(ctx, objectKey)
	if err != nil {
		log.Printf("[UploadService] Warning: head request for %s failed, falling back to declared values: %v", objectKey, err)
	} else {
		if info.SizeBytes > 0 {
			actualSize = info.SizeBytes
		}
		if info.ContentType != "" {
			mimeType = info.ContentType
		}
	}

	var ownerPtr *string
	if ownerID != "" {
		ownerPtr = &ownerID
	}

	if err := s.assets.MarkCompleted(ctx, asset.ID, actualSize, mimeType, ownerPtr); err != nil {
		return nil, fmt.Errorf("failed to mark asset completed: %w", err)
	}

	if err := s.quotaService.Commit(ctx, tenantID, asset.DeclaredSizeBytes, actualSize); err != nil {
		return nil, fmt.Errorf("failed to commit quota: %w", err)
	}

	return &domain.CompleteResult{
		AssetID:   asset.ID,
		PublicURL: s.PublicURL(objectKey),
	}, nil
}

// Abort отменяет незавершенную загрузку. Идемпотентна: отсутствие
// ассета означает, что отмена уже прошла
func (s *UploadService) Abort(ctx context.Context, tenantID, objectKey string) error {
	asset, err := s.assets.GetByObjectKey(ctx, objectKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if asset.TenantID != tenantID {
		return domain.ErrForbidden
	}

	// Complete успел раньше: байты уже закоммичены в used, ассет живой.
	// Отмена после завершения ничего не трогает
	if asset.Status == domain.AssetStatusCompleted {
		return nil
	}

	if err := s.quotaService.Release(ctx, tenantID, asset.DeclaredSizeBytes); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	if err := s.assets.Delete(ctx, asset.ID); err != nil {
		return fmt.Errorf("failed to delete asset record: %w", err)
	}

	if err := s.s3Client.DeleteObject(objectKey); err != nil {
		log.Printf("[UploadService] Warning: failed to delete object %s from storage: %v", objectKey, err)
	}

	return nil
}
