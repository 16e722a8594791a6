// storage.go
package s3

import (
	"context"
	"time"
)

// ObjectInfo содержит метаданные объекта, полученные через HEAD-запрос
type ObjectInfo struct {
	SizeBytes   int64
	ContentType string
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	// GenerateUploadURL выдает presigned PUT URL с ограниченным временем жизни
	GenerateUploadURL(ctx context.Context, key string, mimeType string, ttl time.Duration) (string, error)
	// HeadObject возвращает фактический размер и тип объекта
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	// DeleteObject удаляет объект; отсутствие объекта ошибкой не считается
	DeleteObject(key string) error
	// CopyObject копирует объект внутри бакета
	CopyObject(ctx context.Context, srcKey, dstKey string) error
}
