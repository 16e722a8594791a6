package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
	"mediavault/internal/service/s3"
)

// fakeQuotaStore повторяет семантику QuotaRepository в памяти:
// мьютекс на арендатора играет роль блокировки строки
type fakeQuotaStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	accounts map[string]*domain.QuotaAccount
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{
		locks:    make(map[string]*sync.Mutex),
		accounts: make(map[string]*domain.QuotaAccount),
	}
}

func (f *fakeQuotaStore) tenantLock(tenantID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locks[tenantID]; !ok {
		f.locks[tenantID] = &sync.Mutex{}
	}
	return f.locks[tenantID]
}

func (f *fakeQuotaStore) Get(ctx context.Context, tenantID string) (*domain.QuotaAccount, error) {
	lock := f.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	acc, ok := f.accounts[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeQuotaStore) WithAccount(ctx context.Context, tenantID string, createMax int64, fn func(acc *domain.QuotaAccount) error) error {
	lock := f.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	acc, ok := f.accounts[tenantID]
	if !ok {
		if createMax <= 0 {
			return domain.ErrNotFound
		}
		acc = domain.NewQuotaAccount(tenantID, createMax)
		f.accounts[tenantID] = acc
	}

	// fn работает с копией: откат при ошибке, как в транзакции
	cp := *acc
	if err := fn(&cp); err != nil {
		return err
	}

	*acc = cp
	return nil
}

type fakeAssetStore struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*domain.Asset
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{assets: make(map[uuid.UUID]*domain.Asset)}
}

func (f *fakeAssetStore) put(asset *domain.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *asset
	f.assets[asset.ID] = &cp
}

func (f *fakeAssetStore) get(id uuid.UUID) *domain.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.assets[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (f *fakeAssetStore) Create(ctx context.Context, asset *domain.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	cp := *asset
	f.assets[asset.ID] = &cp
	return nil
}

func (f *fakeAssetStore) GetByObjectKey(ctx context.Context, objectKey string) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.ObjectKey == objectKey {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAssetStore) MarkCompleted(ctx context.Context, id uuid.UUID, actualSize int64, mimeType string, ownerID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = domain.AssetStatusCompleted
	a.ActualSizeBytes = actualSize
	a.MIMEType = mimeType
	if ownerID != nil {
		a.OwnerID = ownerID
	}
	return nil
}

func (f *fakeAssetStore) SetOwner(ctx context.Context, id uuid.UUID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.OwnerID = &ownerID
	a.PendingDelete = false
	a.PendingDeleteAt = nil
	return nil
}

func (f *fakeAssetStore) SetPendingDelete(ctx context.Context, id uuid.UUID, pending bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PendingDelete = pending
	if pending {
		now := time.Now()
		a.PendingDeleteAt = &now
	} else {
		a.PendingDeleteAt = nil
	}
	return nil
}

func (f *fakeAssetStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.assets, id)
	return nil
}

func (f *fakeAssetStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Asset
	for _, a := range f.assets {
		if a.OwnerID != nil && *a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sortAssets(out)
	return out, nil
}

func (f *fakeAssetStore) ListOrphaned(ctx context.Context, olderThan time.Time) ([]domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Asset
	for _, a := range f.assets {
		if a.OwnerID == nil && a.CreatedAt.Before(olderThan) {
			out = append(out, *a)
		}
	}
	sortAssets(out)
	return out, nil
}

func (f *fakeAssetStore) ListPendingDelete(ctx context.Context, olderThan time.Time) ([]domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Asset
	for _, a := range f.assets {
		if a.PendingDelete && a.PendingDeleteAt != nil && a.PendingDeleteAt.Before(olderThan) {
			out = append(out, *a)
		}
	}
	sortAssets(out)
	return out, nil
}

func (f *fakeAssetStore) TransferOwner(ctx context.Context, fromOwnerID, toOwnerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, a := range f.assets {
		if a.OwnerID != nil && *a.OwnerID == fromOwnerID && !a.PendingDelete {
			owner := toOwnerID
			a.OwnerID = &owner
			moved++
		}
	}
	return moved, nil
}

func sortAssets(assets []domain.Asset) {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].ObjectKey < assets[j].ObjectKey
	})
}

type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*domain.Draft
	getErr error
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]*domain.Draft)}
}

func (f *fakeDraftStore) Get(ctx context.Context, id string) (*domain.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDraftStore) Save(ctx context.Context, draft *domain.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *draft
	f.drafts[draft.ID] = &cp
	return nil
}

func (f *fakeDraftStore) ListExpired(ctx context.Context, now time.Time) ([]domain.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Draft
	for _, d := range f.drafts {
		if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDraftStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, id)
	return nil
}

// fakeStorage подменяет объектное хранилище в тестах
type fakeStorage struct {
	mu      sync.Mutex
	headFn  func(key string) (*s3.ObjectInfo, error)
	delErr  error
	deleted []string
}

func (f *fakeStorage) GenerateUploadURL(ctx context.Context, key string, mimeType string, ttl time.Duration) (string, error) {
	return "https://upload.example.com/" + key, nil
}

func (f *fakeStorage) HeadObject(ctx context.Context, key string) (*s3.ObjectInfo, error) {
	if f.headFn != nil {
		return f.headFn(key)
	}
	return nil, errors.New("object not found")
}

func (f *fakeStorage) DeleteObject(key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	return nil
}

func (f *fakeStorage) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
