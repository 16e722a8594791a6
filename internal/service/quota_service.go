package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mediavault/internal/domain"
)

// QuotaStore определяет хранилище аккаунтов квот. WithAccount выполняет
// fn под блокировкой строки арендатора; при createMax > 0 отсутствующий
// аккаунт создается лениво, при createMax == 0 возвращается ErrNotFound
type QuotaStore interface {
	Get(ctx context.Context, tenantID string) (*domain.QuotaAccount, error)
	WithAccount(ctx context.Context, tenantID string, createMax int64, fn func(acc *domain.QuotaAccount) error) error
}

// QuotaService представляет сервис учёта квот. Все мутации
// сериализуются блокировкой строки арендатора
type QuotaService struct {
	store           QuotaStore
	defaultMaxBytes int64
}

func NewQuotaService(store QuotaStore, defaultMaxBytes int64) *QuotaService {
	if defaultMaxBytes <= 0 {
		defaultMaxBytes = domain.DefaultMaxBytes
	}
	return &QuotaService{
		store:           store,
		defaultMaxBytes: defaultMaxBytes,
	}
}

// Reserve резервирует size байт под будущую загрузку. Аккаунт создается
// лениво при первом резервировании
func (s *QuotaService) Reserve(ctx context.Context, tenantID string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("reserve size must be positive, got %d", size)
	}

	return s.store.WithAccount(ctx, tenantID, s.defaultMaxBytes, func(acc *domain.QuotaAccount) error {
		available := acc.AvailableBytes()
		if size > available {
			return &domain.QuotaExceededError{
				TenantID:       tenantID,
				UsedBytes:      acc.UsedBytes,
				ReservedBytes:  acc.ReservedBytes,
				MaxBytes:       acc.MaxBytes,
				RequestedBytes: size,
				AvailableBytes: available,
			}
		}

		acc.ReservedBytes += size
		return nil
	})
}

// Commit снимает резерв по заявленному размеру и увеличивает used
// по фактическому. Уход reserved в минус зажимается в ноль
func (s *QuotaService) Commit(ctx context.Context, tenantID string, reservedSize, actualSize int64) error {
	return s.store.WithAccount(ctx, tenantID, s.defaultMaxBytes, func(acc *domain.QuotaAccount) error {
		acc.ReservedBytes -= reservedSize
		if acc.ReservedBytes < 0 {
			log.Printf("[QuotaService] Warning: reserved bytes for tenant %s would go negative (%d), clamping to zero",
				tenantID, acc.ReservedBytes)
			acc.ReservedBytes = 0
		}

		acc.UsedBytes += actualSize
		return nil
	})
}

// Release снимает резервирование на size байт. Идемпотентна:
// отсутствие аккаунта считается no-op, уход в минус зажимается в ноль
func (s *QuotaService) Release(ctx context.Context, tenantID string, size int64) error {
	if size <= 0 {
		return nil
	}

	err := s.store.WithAccount(ctx, tenantID, 0, func(acc *domain.QuotaAccount) error {
		acc.ReservedBytes -= size
		if acc.ReservedBytes < 0 {
			acc.ReservedBytes = 0
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}

	return err
}

// ReleaseUsed возвращает size байт из счётчика used (при окончательном
// удалении ассета). Идемпотентна по тем же правилам, что и Release
func (s *QuotaService) ReleaseUsed(ctx context.Context, tenantID string, size int64) error {
	if size <= 0 {
		return nil
	}

	err := s.store.WithAccount(ctx, tenantID, 0, func(acc *domain.QuotaAccount) error {
		acc.UsedBytes -= size
		if acc.UsedBytes < 0 {
			log.Printf("[QuotaService] Warning: used bytes for tenant %s would go negative (%d), clamping to zero",
				tenantID, acc.UsedBytes)
			acc.UsedBytes = 0
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}

	return err
}

// AvailableBytes возвращает остаток квоты без блокировки
func (s *QuotaService) AvailableBytes(ctx context.Context, tenantID string) (int64, error) {
	acc, err := s.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.defaultMaxBytes, nil
		}
		return 0, fmt.Errorf("failed to get quota: %w", err)
	}

	return acc.AvailableBytes(), nil
}

// GetQuotaInfo возвращает сводку для эндпоинта информации о квоте
func (s *QuotaService) GetQuotaInfo(ctx context.Context, tenantID string) (*domain.QuotaInfo, error) {
	acc, err := s.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			acc = domain.NewQuotaAccount(tenantID, s.defaultMaxBytes)
		} else {
			return nil, fmt.Errorf("failed to get quota: %w", err)
		}
	}

	usagePercent := 0.0
	if acc.MaxBytes > 0 {
		usagePercent = float64(acc.UsedBytes) / float64(acc.MaxBytes) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     acc.MaxBytes,
		UsedSpace:      acc.UsedBytes,
		ReservedSpace:  acc.ReservedBytes,
		AvailableSpace: acc.AvailableBytes(),
		UsagePercent:   usagePercent,
	}, nil
}
