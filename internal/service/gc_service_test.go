package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"mediavault/internal/domain"
)

const testBaseURL = "https://cdn.example.com"

func seedAsset(store *fakeAssetStore, tenantID, key, ownerID string, pendingDelete bool) *domain.Asset {
	asset := domain.NewAsset(tenantID, key, 100, "image/png", domain.AssetKindContent)
	asset.Status = domain.AssetStatusCompleted
	asset.ActualSizeBytes = 100
	if ownerID != "" {
		asset.OwnerID = &ownerID
	}
	if pendingDelete {
		asset.PendingDelete = true
		now := asset.CreatedAt
		asset.PendingDeleteAt = &now
	}
	store.put(asset)
	return asset
}

func assetURL(tenantID, name string) string {
	return fmt.Sprintf("%s/content_assets/%s/%s", testBaseURL, tenantID, name)
}

func TestTrackDiff(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	keyA := "content_assets/tenant-1/a.png"
	keyB := "content_assets/tenant-1/b.png"
	keyC := "content_assets/tenant-1/c.png"

	a := seedAsset(store, "tenant-1", keyA, "draft-1", false)
	b := seedAsset(store, "tenant-1", keyB, "", false)
	c := seedAsset(store, "tenant-1", keyC, "draft-1", false)

	// Контент ссылается на {A, B}, привязаны {A, C}
	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content: fmt.Sprintf(`<p><img src="%s"> and <img src='%s'></p>`,
			assetURL("tenant-1", "a.png"), assetURL("tenant-1", "b.png")),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 1, result.Linked)
	require.Equal(t, 1, result.Marked)
	require.Equal(t, 0, result.Restored)

	// B привязан, C помечен, A не тронут
	got := store.get(b.ID)
	require.NotNil(t, got.OwnerID)
	require.Equal(t, "draft-1", *got.OwnerID)
	require.False(t, got.PendingDelete)

	require.True(t, store.get(c.ID).PendingDelete)

	got = store.get(a.ID)
	require.False(t, got.PendingDelete)
	require.Equal(t, "draft-1", *got.OwnerID)
}

func TestTrackRestoresPendingDelete(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	keyC := "content_assets/tenant-1/c.png"
	c := seedAsset(store, "tenant-1", keyC, "draft-1", true)

	// C снова появился в контенте до истечения грейс-периода
	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content:  fmt.Sprintf(`<img src="%s">`, assetURL("tenant-1", "c.png")),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 1, result.Restored)

	got := store.get(c.ID)
	require.False(t, got.PendingDelete)
	require.Nil(t, got.PendingDeleteAt)
}

func TestTrackCoverImage(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	key := "content_assets/tenant-1/cover.webp"
	asset := seedAsset(store, "tenant-1", key, "", false)

	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content:  "<p>no inline images</p>",
		CoverURL: assetURL("tenant-1", "cover.webp"),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 1, result.Linked)

	got := store.get(asset.ID)
	require.Equal(t, "draft-1", *got.OwnerID)
}

func TestTrackIgnoresUnknownAndForeignAssets(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	foreign := seedAsset(store, "tenant-2", "content_assets/tenant-1/stolen.png", "", false)

	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content: fmt.Sprintf(`<img src="%s"><img src="%s">`,
			assetURL("tenant-1", "missing.png"), assetURL("tenant-1", "stolen.png")),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 0, result.Linked)

	// Чужой ассет остался без владельца
	require.Nil(t, store.get(foreign.ID).OwnerID)
}

func TestTrackSkipsReservedAssets(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	key := "content_assets/tenant-1/uploading.png"
	reserved := domain.NewAsset("tenant-1", key, 100, "image/png", domain.AssetKindContent)
	store.put(reserved)

	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content:  fmt.Sprintf(`<img src="%s">`, assetURL("tenant-1", "uploading.png")),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 0, result.Linked)

	// Незавершенная загрузка не получает владельца и остается кандидатом
	// свипа осиротевших резервирований
	require.Nil(t, store.get(reserved.ID).OwnerID)
}

func TestTrackStripsQueryAndFragment(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	key := "content_assets/tenant-1/a.png"
	asset := seedAsset(store, "tenant-1", key, "", false)

	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content:  fmt.Sprintf(`<img src="%s?width=400#zoom">`, assetURL("tenant-1", "a.png")),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 1, result.Linked)
	require.Equal(t, "draft-1", *store.get(asset.ID).OwnerID)
}

func TestTrackDeduplicatesReferences(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	key := "content_assets/tenant-1/a.png"
	seedAsset(store, "tenant-1", key, "", false)

	url := assetURL("tenant-1", "a.png")
	draft := &domain.Draft{
		ID:       "draft-1",
		TenantID: "tenant-1",
		Content:  fmt.Sprintf(`<img src="%s"><img src="%s">`, url, url),
	}

	result, err := svc.Track(ctx, "tenant-1", draft)
	require.NoError(t, err)
	require.Equal(t, 1, result.Linked)
}

func TestTransferMovesLiveAssetsOnly(t *testing.T) {
	store := newFakeAssetStore()
	svc := NewGCService(store, testBaseURL)
	ctx := context.Background()

	live := seedAsset(store, "tenant-1", "content_assets/tenant-1/live.png", "draft-1", false)
	pending := seedAsset(store, "tenant-1", "content_assets/tenant-1/pending.png", "draft-1", true)

	moved, err := svc.Transfer(ctx, "draft-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), moved)

	require.Equal(t, "post-1", *store.get(live.ID).OwnerID)
	require.Equal(t, "draft-1", *store.get(pending.ID).OwnerID)
}
