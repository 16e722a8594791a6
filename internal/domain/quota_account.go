package domain

import "time"

// DefaultMaxBytes задает лимит квоты по умолчанию для нового арендатора (1GB)
const DefaultMaxBytes int64 = 1073741824

// QuotaAccount хранит учёт занятого и зарезервированного пространства
// арендатора. Инвариант: used_bytes + reserved_bytes <= max_bytes
type QuotaAccount struct {
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	UsedBytes     int64     `json:"used_bytes" db:"used_bytes"`
	ReservedBytes int64     `json:"reserved_bytes" db:"reserved_bytes"`
	MaxBytes      int64     `json:"max_bytes" db:"max_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NewQuotaAccount создает аккаунт квоты с нулевым балансом
func NewQuotaAccount(tenantID string, maxBytes int64) *QuotaAccount {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &QuotaAccount{
		TenantID:      tenantID,
		UsedBytes:     0,
		ReservedBytes: 0,
		MaxBytes:      maxBytes,
	}
}

// AvailableBytes возвращает остаток квоты с учётом резервов
func (a *QuotaAccount) AvailableBytes() int64 {
	return a.MaxBytes - (a.UsedBytes + a.ReservedBytes)
}

// QuotaInfo представляет сводку по квоте для API
type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	ReservedSpace  int64   `json:"reserved_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}
