package domain

import (
	"time"

	"github.com/google/uuid"
)

// Статусы жизненного цикла ассета
const (
	AssetStatusReserved  = "reserved"  // presign выдан, байты ещё не подтверждены
	AssetStatusCompleted = "completed" // загрузка завершена, квота закоммичена
)

// Виды ассетов
const (
	AssetKindContent   = "content"
	AssetKindThumbnail = "thumbnail"
	AssetKindGallery   = "gallery"
)

// Asset представляет один загруженный объект в хранилище.
// OwnerID остается nil, пока ассет не привязан к контенту;
// PendingDelete выставляется GC, когда ссылка пропадает из контента
type Asset struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	TenantID          string     `json:"tenant_id" db:"tenant_id"`
	OwnerID           *string    `json:"owner_id,omitempty" db:"owner_id"`
	ObjectKey         string     `json:"object_key" db:"object_key"`
	DeclaredSizeBytes int64      `json:"declared_size_bytes" db:"declared_size_bytes"`
	ActualSizeBytes   int64      `json:"actual_size_bytes" db:"actual_size_bytes"`
	MIMEType          string     `json:"mime_type" db:"mime_type"`
	Kind              string     `json:"kind" db:"kind"`
	Status            string     `json:"status" db:"status"`
	PendingDelete     bool       `json:"pending_delete" db:"pending_delete"`
	PendingDeleteAt   *time.Time `json:"pending_delete_at,omitempty" db:"pending_delete_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// NewAsset создает ассет в состоянии reserved без владельца
func NewAsset(tenantID, objectKey string, declaredSize int64, mimeType, kind string) *Asset {
	if kind == "" {
		kind = AssetKindContent
	}
	return &Asset{
		ID:                uuid.New(),
		TenantID:          tenantID,
		OwnerID:           nil,
		ObjectKey:         objectKey,
		DeclaredSizeBytes: declaredSize,
		ActualSizeBytes:   0,
		MIMEType:          mimeType,
		Kind:              kind,
		Status:            AssetStatusReserved,
		PendingDelete:     false,
	}
}

// ChargeableBytes возвращает, сколько байт ассет занимает в счётчике
// used. До завершения загрузки фактический размер неизвестен,
// используем заявленный
func (a *Asset) ChargeableBytes() int64 {
	if a.ActualSizeBytes > 0 {
		return a.ActualSizeBytes
	}
	return a.DeclaredSizeBytes
}

// PresignResult представляет ответ на запрос presigned-загрузки
type PresignResult struct {
	AssetID   uuid.UUID `json:"asset_id"`
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
}

// CompleteResult представляет ответ на завершение загрузки
type CompleteResult struct {
	AssetID   uuid.UUID `json:"asset_id"`
	PublicURL string    `json:"public_url"`
}
