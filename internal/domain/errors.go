package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, когда ресурс (ассет, черновик) не найден
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden возвращается при попытке доступа к чужому ресурсу
	ErrForbidden = errors.New("access to resource is forbidden")
	// ErrUpstreamUnavailable возвращается, когда объектное хранилище недоступно
	// и операция не может быть выполнена без него
	ErrUpstreamUnavailable = errors.New("object storage unavailable")
	// ErrInvalidUpload возвращается при нарушении политики загрузки
	// (недопустимый размер или MIME-тип)
	ErrInvalidUpload = errors.New("invalid upload request")
)

// QuotaExceededError возвращается, когда запрошенное резервирование
// не помещается в квоту арендатора. Содержит диагностические цифры
// для машинно-читаемого ответа клиенту.
type QuotaExceededError struct {
	TenantID       string `json:"tenant_id"`
	UsedBytes      int64  `json:"used_bytes"`
	ReservedBytes  int64  `json:"reserved_bytes"`
	MaxBytes       int64  `json:"max_bytes"`
	RequestedBytes int64  `json:"requested_bytes"`
	AvailableBytes int64  `json:"available_bytes"`
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded for tenant %s: requested %d bytes, available %d (used=%d, reserved=%d, max=%d)",
		e.TenantID, e.RequestedBytes, e.AvailableBytes, e.UsedBytes, e.ReservedBytes, e.MaxBytes)
}
