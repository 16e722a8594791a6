package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

type AssetRepository struct {
	db *sqlx.DB
}

func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create сохраняет новый ассет в состоянии reserved
func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := `
        INSERT INTO assets (id, tenant_id, owner_id, object_key, declared_size_bytes,
                            actual_size_bytes, mime_type, kind, status, pending_delete)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		asset.ID,
		asset.TenantID,
		asset.OwnerID,
		asset.ObjectKey,
		asset.DeclaredSizeBytes,
		asset.ActualSizeBytes,
		asset.MIMEType,
		asset.Kind,
		asset.Status,
		asset.PendingDelete,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
}

// GetByObjectKey ищет ассет по ключу объекта (ключ уникален глобально)
func (r *AssetRepository) GetByObjectKey(ctx context.Context, objectKey string) (*domain.Asset, error) {
	var asset domain.Asset

	err := r.db.GetContext(ctx, &asset,
		`SELECT * FROM assets WHERE object_key = $1`,
		objectKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset by key: %w", err)
	}

	return &asset, nil
}

// MarkCompleted переводит ассет в состояние completed, фиксируя
// фактический размер и тип; владелец выставляется, если передан
func (r *AssetRepository) MarkCompleted(ctx context.Context, id uuid.UUID, actualSize int64, mimeType string, ownerID *string) error {
	query := `
        UPDATE assets
        SET status = $1,
            actual_size_bytes = $2,
            mime_type = $3,
            owner_id = COALESCE($4, owner_id),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		domain.AssetStatusCompleted, actualSize, mimeType, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to mark asset completed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SetOwner привязывает ассет к владельцу контента и снимает флаг
// pending_delete (повторная ссылка до истечения грейс-периода)
func (r *AssetRepository) SetOwner(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
        UPDATE assets
        SET owner_id = $1,
            pending_delete = FALSE,
            pending_delete_at = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to set asset owner: %w", err)
	}

	return nil
}

// SetPendingDelete выставляет или снимает флаг мягкого удаления
func (r *AssetRepository) SetPendingDelete(ctx context.Context, id uuid.UUID, pending bool) error {
	var query string
	if pending {
		query = `
            UPDATE assets
            SET pending_delete = TRUE,
                pending_delete_at = CURRENT_TIMESTAMP,
                updated_at = CURRENT_TIMESTAMP
            WHERE id = $1`
	} else {
		query = `
            UPDATE assets
            SET pending_delete = FALSE,
                pending_delete_at = NULL,
                updated_at = CURRENT_TIMESTAMP
            WHERE id = $1`
	}

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to set pending delete: %w", err)
	}

	return nil
}

// Delete окончательно удаляет строку ассета
func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	return nil
}

// ListByOwner возвращает все ассеты, привязанные к владельцу контента
func (r *AssetRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Asset, error) {
	var assets []domain.Asset

	err := r.db.SelectContext(ctx, &assets,
		`SELECT * FROM assets WHERE owner_id = $1 ORDER BY created_at`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets by owner: %w", err)
	}

	return assets, nil
}

// ListOrphaned возвращает ассеты без владельца старше указанного
// момента
func (r *AssetRepository) ListOrphaned(ctx context.Context, olderThan time.Time) ([]domain.Asset, error) {
	var assets []domain.Asset

	err := r.db.SelectContext(ctx, &assets,
		`SELECT * FROM assets WHERE owner_id IS NULL AND created_at < $1 ORDER BY created_at`,
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned assets: %w", err)
	}

	return assets, nil
}

// ListPendingDelete возвращает ассеты с флагом pending_delete, у которых
// грейс-период истёк (флаг выставлен раньше указанного момента)
func (r *AssetRepository) ListPendingDelete(ctx context.Context, olderThan time.Time) ([]domain.Asset, error) {
	var assets []domain.Asset

	err := r.db.SelectContext(ctx, &assets,
		`SELECT * FROM assets
         WHERE pending_delete = TRUE AND pending_delete_at < $1
         ORDER BY pending_delete_at`,
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending-delete assets: %w", err)
	}

	return assets, nil
}

// TransferOwner переподвешивает все не-pending-delete ассеты с одного
// владельца на другого
func (r *AssetRepository) TransferOwner(ctx context.Context, fromOwnerID, toOwnerID string) (int64, error) {
	query := `
        UPDATE assets
        SET owner_id = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2 AND pending_delete = FALSE`

	result, err := r.db.ExecContext(ctx, query, toOwnerID, fromOwnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer assets: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}
