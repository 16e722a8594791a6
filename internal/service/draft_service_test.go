package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"mediavault/internal/domain"
)

func newDraftFixture(t *testing.T) (*DraftService, *fakeAssetStore, *fakeDraftStore) {
	t.Helper()
	assetStore := newFakeAssetStore()
	draftStore := newFakeDraftStore()
	gc := NewGCService(assetStore, testBaseURL)
	return NewDraftService(draftStore, gc), assetStore, draftStore
}

func TestSaveDraftTracksReferences(t *testing.T) {
	svc, assetStore, draftStore := newDraftFixture(t)
	ctx := context.Background()

	asset := seedAsset(assetStore, "tenant-1", "content_assets/tenant-1/a.png", "", false)

	content := fmt.Sprintf(`<img src="%s">`, assetURL("tenant-1", "a.png"))
	draft, track, err := svc.Save(ctx, "tenant-1", "draft-1", content, "", nil)
	require.NoError(t, err)
	require.Equal(t, "draft-1", draft.ID)
	require.Equal(t, 1, track.Linked)

	saved, err := draftStore.Get(ctx, "draft-1")
	require.NoError(t, err)
	require.Equal(t, content, saved.Content)

	require.Equal(t, "draft-1", *assetStore.get(asset.ID).OwnerID)
}

func TestSaveDraftForeignTenant(t *testing.T) {
	svc, _, draftStore := newDraftFixture(t)
	ctx := context.Background()

	require.NoError(t, draftStore.Save(ctx, &domain.Draft{ID: "draft-1", TenantID: "tenant-1"}))

	_, _, err := svc.Save(ctx, "tenant-2", "draft-1", "<p></p>", "", nil)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSaveDraftPropagatesStoreError(t *testing.T) {
	svc, _, draftStore := newDraftFixture(t)
	ctx := context.Background()

	// Сбой хранилища не должен выглядеть как отсутствие черновика
	draftStore.getErr = errors.New("connection reset")

	_, _, err := svc.Save(ctx, "tenant-1", "draft-1", "<p></p>", "", nil)
	require.ErrorContains(t, err, "connection reset")
}

func TestPublishTransfersAndDeletesDraft(t *testing.T) {
	svc, assetStore, draftStore := newDraftFixture(t)
	ctx := context.Background()

	require.NoError(t, draftStore.Save(ctx, &domain.Draft{ID: "draft-1", TenantID: "tenant-1"}))
	live := seedAsset(assetStore, "tenant-1", "content_assets/tenant-1/live.png", "draft-1", false)

	moved, err := svc.Publish(ctx, "tenant-1", "draft-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), moved)

	require.Equal(t, "post-1", *assetStore.get(live.ID).OwnerID)

	_, err = draftStore.Get(ctx, "draft-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPublishErrors(t *testing.T) {
	svc, _, draftStore := newDraftFixture(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, "tenant-1", "missing", "post-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, draftStore.Save(ctx, &domain.Draft{ID: "draft-1", TenantID: "tenant-1"}))
	_, err = svc.Publish(ctx, "tenant-2", "draft-1", "post-1")
	require.ErrorIs(t, err, domain.ErrForbidden)
}
