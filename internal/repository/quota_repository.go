package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

type QuotaRepository struct {
	db *sqlx.DB
}

func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Get читает аккаунт квоты без блокировки
func (r *QuotaRepository) Get(ctx context.Context, tenantID string) (*domain.QuotaAccount, error) {
	var acc domain.QuotaAccount

	err := r.db.GetContext(ctx, &acc,
		`SELECT * FROM quota_accounts WHERE tenant_id = $1`,
		tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quota account: %w", err)
	}

	return &acc, nil
}

// WithAccount выполняет fn над аккаунтом квоты под блокировкой строки
// в одной транзакции. Если аккаунта нет и createMax > 0, аккаунт
// создается лениво и перечитывается под блокировкой; при createMax == 0
// возвращается domain.ErrNotFound. Изменения фиксируются только если
// fn вернула nil
func (r *QuotaRepository) WithAccount(ctx context.Context, tenantID string, createMax int64, fn func(acc *domain.QuotaAccount) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin quota transaction: %w", err)
	}
	defer tx.Rollback()

	var acc domain.QuotaAccount
	err = tx.GetContext(ctx, &acc,
		`SELECT * FROM quota_accounts WHERE tenant_id = $1 FOR UPDATE`,
		tenantID)

	if errors.Is(err, sql.ErrNoRows) {
		if createMax <= 0 {
			return domain.ErrNotFound
		}

		// Аккаунта еще нет, создаем и берем блокировку заново
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quota_accounts (tenant_id, used_bytes, reserved_bytes, max_bytes)
			 VALUES ($1, 0, 0, $2)
			 ON CONFLICT (tenant_id) DO NOTHING`,
			tenantID, createMax)
		if err != nil {
			return fmt.Errorf("failed to create quota account: %w", err)
		}

		err = tx.GetContext(ctx, &acc,
			`SELECT * FROM quota_accounts WHERE tenant_id = $1 FOR UPDATE`,
			tenantID)
		if err != nil {
			return fmt.Errorf("failed to re-lock quota account: %w", err)
		}

		log.Printf("[QuotaRepository] Created quota account for tenant %s with limit %d bytes", tenantID, createMax)
	} else if err != nil {
		return fmt.Errorf("failed to lock quota account: %w", err)
	}

	if err := fn(&acc); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE quota_accounts
		 SET used_bytes = $1,
		     reserved_bytes = $2,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = $3`,
		acc.UsedBytes, acc.ReservedBytes, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update quota account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quota transaction: %w", err)
	}

	return nil
}
