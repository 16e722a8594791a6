package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediavault/internal/domain"
)

// DraftService представляет сервис для работы с черновиками.
// Прогоняет GC-проход на каждом сохранении контента и переносит
// владение при публикации
type DraftService struct {
	drafts    DraftStore
	gcService *GCService
}

func NewDraftService(drafts DraftStore, gcService *GCService) *DraftService {
	return &DraftService{
		drafts:    drafts,
		gcService: gcService,
	}
}

// Get возвращает черновик с проверкой принадлежности арендатору
func (s *DraftService) Get(ctx context.Context, tenantID, draftID string) (*domain.Draft, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}

	return draft, nil
}

// Save сохраняет контент черновика и сразу запускает проход
// отслеживания ссылок: привязка ассетов всегда догоняет контент
func (s *DraftService) Save(ctx context.Context, tenantID, draftID, content, coverURL string, expiresAt *time.Time) (*domain.Draft, *TrackResult, error) {
	existing, err := s.drafts.Get(ctx, draftID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if err == nil && existing.TenantID != tenantID {
		return nil, nil, domain.ErrForbidden
	}

	draft := &domain.Draft{
		ID:        draftID,
		TenantID:  tenantID,
		Content:   content,
		CoverURL:  coverURL,
		ExpiresAt: expiresAt,
	}

	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, nil, fmt.Errorf("failed to save draft: %w", err)
	}

	track, err := s.gcService.Track(ctx, tenantID, draft)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to track asset references: %w", err)
	}

	return draft, track, nil
}

// Publish переносит все живые ассеты черновика на опубликованный
// материал и удаляет черновик. Квота не меняется: байты уже учтены
func (s *DraftService) Publish(ctx context.Context, tenantID, draftID, postID string) (int64, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return 0, err
	}
	if draft.TenantID != tenantID {
		return 0, domain.ErrForbidden
	}

	moved, err := s.gcService.Transfer(ctx, draftID, postID)
	if err != nil {
		return 0, err
	}

	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return moved, fmt.Errorf("failed to delete published draft: %w", err)
	}

	return moved, nil
}
