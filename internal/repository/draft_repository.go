package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

type DraftRepository struct {
	db *sqlx.DB
}

func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Get возвращает черновик по идентификатору
func (r *DraftRepository) Get(ctx context.Context, id string) (*domain.Draft, error) {
	var draft domain.Draft

	err := r.db.GetContext(ctx, &draft,
		`SELECT * FROM drafts WHERE id = $1`,
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	return &draft, nil
}

// Save создает или обновляет черновик
func (r *DraftRepository) Save(ctx context.Context, draft *domain.Draft) error {
	query := `
        INSERT INTO drafts (id, tenant_id, content, cover_url, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET content = EXCLUDED.content,
            cover_url = EXCLUDED.cover_url,
            expires_at = EXCLUDED.expires_at,
            updated_at = CURRENT_TIMESTAMP
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		draft.ID,
		draft.TenantID,
		draft.Content,
		draft.CoverURL,
		draft.ExpiresAt,
	).Scan(&draft.CreatedAt, &draft.UpdatedAt)
}

// ListExpired возвращает черновики с истёкшим сроком жизни
func (r *DraftRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Draft, error) {
	var drafts []domain.Draft

	err := r.db.SelectContext(ctx, &drafts,
		`SELECT * FROM drafts WHERE expires_at IS NOT NULL AND expires_at < $1 ORDER BY expires_at`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired drafts: %w", err)
	}

	return drafts, nil
}

// Delete удаляет черновик. Привязанные ассеты не трогаем
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	return nil
}
