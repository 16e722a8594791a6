package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
)

// AssetStore определяет реестр ассетов. Реализуется
// repository.AssetRepository
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByObjectKey(ctx context.Context, objectKey string) (*domain.Asset, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, actualSize int64, mimeType string, ownerID *string) error
	SetOwner(ctx context.Context, id uuid.UUID, ownerID string) error
	SetPendingDelete(ctx context.Context, id uuid.UUID, pending bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Asset, error)
	ListOrphaned(ctx context.Context, olderThan time.Time) ([]domain.Asset, error)
	ListPendingDelete(ctx context.Context, olderThan time.Time) ([]domain.Asset, error)
	TransferOwner(ctx context.Context, fromOwnerID, toOwnerID string) (int64, error)
}

// DraftStore определяет хранилище черновиков
type DraftStore interface {
	Get(ctx context.Context, id string) (*domain.Draft, error)
	Save(ctx context.Context, draft *domain.Draft) error
	ListExpired(ctx context.Context, now time.Time) ([]domain.Draft, error)
	Delete(ctx context.Context, id string) error
}
