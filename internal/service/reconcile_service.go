package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/metrics"
	"mediavault/internal/service/s3"
)

// Имена фоновых свипов (метки для метрик и распределенных блокировок)
const (
	JobOrphanReservations = "orphan_reservations"
	JobPendingDelete      = "pending_delete"
	JobExpiredOwners      = "expired_owners"
)

// ReconcileService представляет фоновые свипы, возвращающие учёт
// в согласованное состояние. Каждый свип обрабатывает кандидатов
// по одному и продолжает после отдельных сбоев
type ReconcileService struct {
	assets       AssetStore
	drafts       DraftStore
	quotaService *QuotaService
	s3Client     s3.Storage

	orphanRetention time.Duration
	pendingGrace    time.Duration

	// переопределяется в тестах для фиксированных часов
	now func() time.Time
}

func NewReconcileService(
	assets AssetStore,
	drafts DraftStore,
	quotaService *QuotaService,
	s3Client s3.Storage,
	orphanRetention time.Duration,
	pendingGrace time.Duration,
) *ReconcileService {
	if orphanRetention <= 0 {
		orphanRetention = 7 * 24 * time.Hour
	}
	if pendingGrace <= 0 {
		pendingGrace = 24 * time.Hour
	}
	return &ReconcileService{
		assets:          assets,
		drafts:          drafts,
		quotaService:    quotaService,
		s3Client:        s3Client,
		orphanRetention: orphanRetention,
		pendingGrace:    pendingGrace,
		now:             time.Now,
	}
}

// reclaimOrphan освобождает обе фазы учёта осиротевшего ассета:
// снятие резерва по заявленному размеру и возврат used по фактическому.
// Один из путей всегда no-op
func (s *ReconcileService) reclaimOrphan(ctx context.Context, asset *domain.Asset) error {
	if err := s.quotaService.Release(ctx, asset.TenantID, asset.DeclaredSizeBytes); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if err := s.quotaService.ReleaseUsed(ctx, asset.TenantID, asset.ActualSizeBytes); err != nil {
		return fmt.Errorf("failed to release used bytes: %w", err)
	}

	if err := s.s3Client.DeleteObject(asset.ObjectKey); err != nil {
		log.Printf("[ReconcileService] Warning: failed to delete object %s: %v", asset.ObjectKey, err)
	}

	return s.assets.Delete(ctx, asset.ID)
}

// reclaimCompleted возвращает закоммиченные байты ассета в квоту и
// удаляет объект вместе с записью реестра
func (s *ReconcileService) reclaimCompleted(ctx context.Context, asset *domain.Asset) error {
	if err := s.quotaService.ReleaseUsed(ctx, asset.TenantID, asset.ChargeableBytes()); err != nil {
		return fmt.Errorf("failed to release used bytes: %w", err)
	}

	if err := s.s3Client.DeleteObject(asset.ObjectKey); err != nil {
		log.Printf("[ReconcileService] Warning: failed to delete object %s: %v", asset.ObjectKey, err)
	}

	return s.assets.Delete(ctx, asset.ID)
}

// SweepOrphanReservations реклеймит ассеты без владельца старше окна
// удержания: они были зарезервированы (и, возможно, загружены), но так
// и не привязаны к контенту
func (s *ReconcileService) SweepOrphanReservations(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.orphanRetention)

	candidates, err := s.assets.ListOrphaned(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned assets: %w", err)
	}

	reclaimed := 0
	for i := range candidates {
		if err := s.reclaimOrphan(ctx, &candidates[i]); err != nil {
			log.Printf("[ReconcileService] Failed to reclaim orphaned asset %s: %v", candidates[i].ObjectKey, err)
			metrics.SweepItemFailuresTotal.WithLabelValues(JobOrphanReservations).Inc()
			continue
		}
		reclaimed++
	}

	if len(candidates) > 0 {
		log.Printf("[ReconcileService] Orphan sweep reclaimed %d of %d candidates", reclaimed, len(candidates))
	}
	metrics.SweepReclaimedTotal.WithLabelValues(JobOrphanReservations).Add(float64(reclaimed))

	return reclaimed, nil
}

// SweepPendingDelete окончательно удаляет ассеты, помеченные GC и
// пережившие грейс-период без восстановления ссылки
func (s *ReconcileService) SweepPendingDelete(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.pendingGrace)

	candidates, err := s.assets.ListPendingDelete(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending-delete assets: %w", err)
	}

	reclaimed := 0
	for i := range candidates {
		if err := s.reclaimCompleted(ctx, &candidates[i]); err != nil {
			log.Printf("[ReconcileService] Failed to reclaim pending-delete asset %s: %v", candidates[i].ObjectKey, err)
			metrics.SweepItemFailuresTotal.WithLabelValues(JobPendingDelete).Inc()
			continue
		}
		reclaimed++
	}

	if len(candidates) > 0 {
		log.Printf("[ReconcileService] Pending-delete sweep reclaimed %d of %d candidates", reclaimed, len(candidates))
	}
	metrics.SweepReclaimedTotal.WithLabelValues(JobPendingDelete).Add(float64(reclaimed))

	return reclaimed, nil
}

// SweepExpiredOwners удаляет черновики с истёкшим сроком жизни вместе
// с привязанными ассетами
func (s *ReconcileService) SweepExpiredOwners(ctx context.Context) (int, error) {
	expired, err := s.drafts.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired drafts: %w", err)
	}

	removed := 0
	for i := range expired {
		draft := &expired[i]

		assets, err := s.assets.ListByOwner(ctx, draft.ID)
		if err != nil {
			log.Printf("[ReconcileService] Failed to list assets of expired draft %s: %v", draft.ID, err)
			metrics.SweepItemFailuresTotal.WithLabelValues(JobExpiredOwners).Inc()
			continue
		}

		cascadeFailed := false
		for j := range assets {
			if err := s.reclaimCompleted(ctx, &assets[j]); err != nil {
				log.Printf("[ReconcileService] Failed to reclaim asset %s of expired draft %s: %v",
					assets[j].ObjectKey, draft.ID, err)
				metrics.SweepItemFailuresTotal.WithLabelValues(JobExpiredOwners).Inc()
				cascadeFailed = true
			}
		}

		// Черновик оставляем до следующего прохода, если часть его
		// ассетов не удалось провести через освобождение квоты
		if cascadeFailed {
			continue
		}

		if err := s.drafts.Delete(ctx, draft.ID); err != nil {
			log.Printf("[ReconcileService] Failed to delete expired draft %s: %v", draft.ID, err)
			metrics.SweepItemFailuresTotal.WithLabelValues(JobExpiredOwners).Inc()
			continue
		}
		removed++
	}

	if len(expired) > 0 {
		log.Printf("[ReconcileService] Expired-owner sweep removed %d of %d drafts", removed, len(expired))
	}
	metrics.SweepReclaimedTotal.WithLabelValues(JobExpiredOwners).Add(float64(removed))

	return removed, nil
}
