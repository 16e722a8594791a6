package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"mediavault/internal/domain"
)

// TrackResult содержит сводку одного прохода отслеживания ссылок
type TrackResult struct {
	Linked   int `json:"linked"`
	Marked   int `json:"marked"`
	Restored int `json:"restored"`
}

// GCService держит привязку ассетов к владельцам контента в согласии
// с тем, на что контент фактически ссылается. Квоту не трогает, меняет
// только владельца и флаг удаления
type GCService struct {
	assets        AssetStore
	publicBaseURL string
}

func NewGCService(assets AssetStore, publicBaseURL string) *GCService {
	return &GCService{
		assets:        assets,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Обрезаем публичный URL до ключа объекта
func (s *GCService) urlToKey(rawURL, tenantID string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/%s/", s.publicBaseURL, assetKeyPrefix, tenantID)
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}

	key := strings.TrimPrefix(rawURL, s.publicBaseURL+"/")
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if key == "" {
		return "", false
	}

	return key, true
}

// extractUsedKeys сканирует контент на URL ассетов арендатора.
// Простой строковый проход, не HTML-парсинг: ссылки всегда встречаются
// как абсолютные URL под базовым адресом
func (s *GCService) extractUsedKeys(content, coverURL, tenantID string) map[string]bool {
	used := make(map[string]bool)

	base := fmt.Sprintf("%s/%s/%s/", s.publicBaseURL, assetKeyPrefix, tenantID)
	rest := content
	for {
		i := strings.Index(rest, base)
		if i < 0 {
			break
		}

		tail := rest[i:]
		end := strings.IndexFunc(tail, func(r rune) bool {
			switch r {
			case '"', '\'', ')', '(', '<', '>', ' ', '\t', '\n', '\r':
				return true
			}
			return false
		})
		if end < 0 {
			end = len(tail)
		}

		if key, ok := s.urlToKey(tail[:end], tenantID); ok {
			used[key] = true
		}

		rest = rest[i+len(base):]
	}

	if coverURL != "" {
		if key, ok := s.urlToKey(coverURL, tenantID); ok {
			used[key] = true
		}
	}

	return used
}

// Track выполняет один проход mark-and-sweep для владельца контента.
// Отдельные сбои по ассетам логируются и не прерывают проход
func (s *GCService) Track(ctx context.Context, tenantID string, owner domain.ContentOwner) (*TrackResult, error) {
	ownerID := owner.OwnerKey()
	used := s.extractUsedKeys(owner.RenderedContent(), owner.CoverImageURL(), tenantID)

	existing, err := s.assets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked assets: %w", err)
	}

	existingByKey := make(map[string]*domain.Asset, len(existing))
	for i := range existing {
		existingByKey[existing[i].ObjectKey] = &existing[i]
	}

	result := &TrackResult{}

	// Привязываем новые ссылки
	for key := range used {
		if _, ok := existingByKey[key]; ok {
			continue
		}

		asset, err := s.assets.GetByObjectKey(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Printf("[GCService] Content of owner %s references unknown asset %s, skipping", ownerID, key)
				continue
			}
			return nil, fmt.Errorf("failed to look up referenced asset: %w", err)
		}
		if asset.TenantID != tenantID {
			log.Printf("[GCService] Owner %s references asset %s of another tenant, skipping", ownerID, key)
			continue
		}
		// Незавершенная загрузка остается без владельца: её резерв снимет
		// свип осиротевших резервирований
		if asset.Status != domain.AssetStatusCompleted {
			log.Printf("[GCService] Owner %s references asset %s that is not completed yet, skipping", ownerID, key)
			continue
		}

		if err := s.assets.SetOwner(ctx, asset.ID, ownerID); err != nil {
			log.Printf("[GCService] Warning: failed to link asset %s to owner %s: %v", key, ownerID, err)
			continue
		}
		result.Linked++
	}

	// Пропавшие из контента помечаем на удаление, вернувшиеся
	// восстанавливаем
	for key, asset := range existingByKey {
		switch {
		case !used[key] && !asset.PendingDelete:
			if err := s.assets.SetPendingDelete(ctx, asset.ID, true); err != nil {
				log.Printf("[GCService] Warning: failed to mark asset %s pending delete: %v", key, err)
				continue
			}
			result.Marked++
		case used[key] && asset.PendingDelete:
			if err := s.assets.SetPendingDelete(ctx, asset.ID, false); err != nil {
				log.Printf("[GCService] Warning: failed to restore asset %s: %v", key, err)
				continue
			}
			result.Restored++
		}
	}

	return result, nil
}

// Transfer переподвешивает все живые ассеты с одного владельца на
// другого. Байты не перемещаются, квота не меняется
func (s *GCService) Transfer(ctx context.Context, fromOwnerID, toOwnerID string) (int64, error) {
	moved, err := s.assets.TransferOwner(ctx, fromOwnerID, toOwnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer assets: %w", err)
	}

	if moved > 0 {
		log.Printf("[GCService] Transferred %d assets from owner %s to %s", moved, fromOwnerID, toOwnerID)
	}

	return moved, nil
}
