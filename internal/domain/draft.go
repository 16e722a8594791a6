package domain

import "time"

// ContentOwner определяет носителя контента (черновик, публикация),
// чьи ссылки на ассеты отслеживает GC
type ContentOwner interface {
	// OwnerKey возвращает идентификатор владельца, под которым
	// ассеты привязываются в реестре
	OwnerKey() string
	// RenderedContent возвращает текущий HTML контента
	RenderedContent() string
	// CoverImageURL возвращает URL обложки или пустую строку
	CoverImageURL() string
}

// Draft представляет черновик пользователя. По истечении ExpiresAt
// подлежит удалению вместе с привязанными ассетами
type Draft struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	Content   string     `json:"content" db:"content"`
	CoverURL  string     `json:"cover_url" db:"cover_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

func (d *Draft) OwnerKey() string        { return d.ID }
func (d *Draft) RenderedContent() string { return d.Content }
func (d *Draft) CoverImageURL() string   { return d.CoverURL }
