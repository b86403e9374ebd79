package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listings-api/domain"
)

func TestCollectionRepository_Items(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	listings := NewListingRepository(db)
	repo := NewCollectionRepository(db)

	a := newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10)
	b := newListing("알파빌딩", domain.CategoryRent, 700, 60, 0, 12)
	seedListings(t, listings, a, b)

	c := &domain.Collection{Title: "강남 후보", ShareToken: "share-1"}
	require.NoError(t, repo.Create(ctx, c))

	first, created, err := repo.AddItem(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Position)

	second, created, err := repo.AddItem(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, second.Position)

	again, created, err := repo.AddItem(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	items, err := repo.Items(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Listing)
	assert.Equal(t, "델타빌딩", items[0].Listing.BuildingName)

	counts, err := repo.ItemCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[c.ID])

	refs, err := repo.CollectionIDsByListing(ctx, []uint{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, refs[a.ID])

	removed, err := repo.RemoveItems(ctx, c.ID, []uint{a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	items, err = repo.Items(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ListingID)
}

func TestCollectionRepository_UpdatePositions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	listings := NewListingRepository(db)
	repo := NewCollectionRepository(db)

	a := newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10)
	b := newListing("알파빌딩", domain.CategoryRent, 700, 60, 0, 12)
	seedListings(t, listings, a, b)

	mine := &domain.Collection{Title: "mine", ShareToken: "t-1"}
	other := &domain.Collection{Title: "other", ShareToken: "t-2"}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, other))

	itemA, _, err := repo.AddItem(ctx, mine.ID, a.ID)
	require.NoError(t, err)
	itemB, _, err := repo.AddItem(ctx, mine.ID, b.ID)
	require.NoError(t, err)
	foreign, _, err := repo.AddItem(ctx, other.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePositions(ctx, mine.ID, map[uint]int{itemA.ID: 5, itemB.ID: 0}))
	items, err := repo.Items(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, items[0].ListingID)
	assert.Equal(t, a.ID, items[1].ListingID)

	err = repo.UpdatePositions(ctx, mine.ID, map[uint]int{itemA.ID: 0, foreign.ID: 1})
	assert.ErrorIs(t, err, ErrForeignItem)

	// nothing moved
	items, err = repo.Items(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, items[0].ListingID)
}

func TestCollectionRepository_DeleteAndShareToken(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupTestDB(t))

	c := &domain.Collection{Title: "공유", ShareToken: "abc"}
	require.NoError(t, repo.Create(ctx, c))

	found, err := repo.GetByShareToken(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByShareToken(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), ErrNotFound)
}
