package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/migrations"
	"listings-api/normalize"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	_, err = migrations.NewMigrator(db).Up()
	require.NoError(t, err)
	return db
}

func newListing(name string, category domain.Category, deposit, rent, sale int64, area float64) *domain.Listing {
	l := &domain.Listing{
		Category:      category,
		Deposit:       deposit,
		Rent:          rent,
		SalePrice:     sale,
		ExclusiveArea: area,
		PropertyType:  "사무실",
		Status:        domain.StatusAvailable,
		Source:        domain.SourceManual,
	}
	normalize.ApplyName(l, name)
	return l
}

func seedListings(t *testing.T, repo ListingRepository, listings ...*domain.Listing) {
	for _, l := range listings {
		require.NoError(t, repo.Create(context.Background(), l))
	}
}

func TestListingRepository_GetByIDNotFound(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(setupTestDB(t))
	seedListings(t, repo,
		newListing("W타워3 A동 1203호", domain.CategoryRent, 2000, 180, 0, 25.3),
		newListing("W타워3 A동 501호", domain.CategoryRent, 1000, 90, 0, 12.1),
		newListing("W타워3 B동 302호", domain.CategoryRent, 1000, 90, 0, 14),
		newListing("지웰타워 801호", domain.CategorySale, 0, 0, 35000, 40),
	)

	t.Run("building matches ignoring spaces and case", func(t *testing.T) {
		results, total, err := repo.Search(ctx, dto.SearchRequest{Building: "w타워 3", Sort: dto.SortRentAsc, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, results, 3)
		// rent then deposit, ties by id
		assert.Equal(t, "W타워3 A동 501호", results[0].BuildingName)
		assert.Equal(t, "W타워3 B동 302호", results[1].BuildingName)
		assert.Equal(t, "W타워3 A동 1203호", results[2].BuildingName)
	})

	t.Run("ranges and category", func(t *testing.T) {
		minRent, maxArea := int64(100), 30.0
		results, total, err := repo.Search(ctx, dto.SearchRequest{
			Category: domain.CategoryRent, MinRent: &minRent, MaxArea: &maxArea, Page: 1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, "1203", results[0].UnitNumber)
	})

	t.Run("paging counts every match", func(t *testing.T) {
		results, total, err := repo.Search(ctx, dto.SearchRequest{Sort: dto.SortAreaDesc, Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.EqualValues(t, 4, total)
		require.Len(t, results, 1)
		assert.Equal(t, 12.1, results[0].ExclusiveArea)
	})
}

func TestListingRepository_SearchWildcardsAreLiteral(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(setupTestDB(t))
	seedListings(t, repo,
		newListing("A_B타워", domain.CategoryRent, 1000, 90, 0, 10),
		newListing("AXB타워", domain.CategoryRent, 1000, 90, 0, 10),
		newListing("100%빌딩", domain.CategoryRent, 1000, 90, 0, 10),
		newListing("1000빌딩", domain.CategoryRent, 1000, 90, 0, 10),
		newListing("느낌!빌딩", domain.CategoryRent, 1000, 90, 0, 10),
	)

	cases := []struct {
		building string
		want     string
	}{
		{"a_b", "A_B타워"},
		{"100%", "100%빌딩"},
		{"느낌!", "느낌!빌딩"},
	}
	for _, tc := range cases {
		results, total, err := repo.Search(ctx, dto.SearchRequest{Building: tc.building, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total, tc.building)
		require.Len(t, results, 1)
		assert.Equal(t, tc.want, results[0].BuildingName)
	}
}

func TestListingRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	listings := NewListingRepository(db)
	images := NewImageRepository(db)
	collections := NewCollectionRepository(db)

	l := newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10)
	seedListings(t, listings, l)
	require.NoError(t, images.Create(ctx, &domain.ListingImage{ListingID: l.ID, StorageKey: "a.jpg"}))
	c := &domain.Collection{Title: "후보", ShareToken: "tok"}
	require.NoError(t, collections.Create(ctx, c))
	_, _, err := collections.AddItem(ctx, c.ID, l.ID)
	require.NoError(t, err)

	removed, err := listings.Delete(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "a.jpg", removed[0].StorageKey)

	items, err := collections.Items(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	left, err := images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = listings.Delete(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingRepository_ApplySync(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	keep := newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10)
	gone := newListing("알파빌딩", domain.CategoryRent, 500, 50, 0, 10)
	seedListings(t, repo, keep, gone)

	keep.Rent = 55
	plan := SyncPlan{
		DeleteIDs: []uint{gone.ID},
		Updates:   []*domain.Listing{keep},
		Inserts:   []*domain.Listing{newListing("감마빌딩", domain.CategorySale, 0, 0, 9000, 20)},
		Log:       &domain.UploadLog{FileName: "sheet.csv", Mode: "sync", Inserted: 1, Updated: 1, Deleted: 1},
	}
	_, err := repo.ApplySync(ctx, plan)
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(55), all[0].Rent)
	assert.Equal(t, "감마빌딩", all[1].BuildingName)

	latest, err := NewUploadLogRepository(db).Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sheet.csv", latest.FileName)

	counts, err := repo.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.CategoryRent])
	assert.Equal(t, int64(1), counts[domain.CategorySale])
}

func TestListingRepository_ApplySyncReplace(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(setupTestDB(t))
	seedListings(t, repo,
		newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10),
		newListing("알파빌딩", domain.CategoryRent, 500, 50, 0, 10),
	)

	_, err := repo.ApplySync(ctx, SyncPlan{
		Replace: true,
		Inserts: []*domain.Listing{newListing("감마빌딩", domain.CategorySale, 0, 0, 9000, 20)},
	})
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "감마빌딩", all[0].BuildingName)
}

func TestListingRepository_DeleteAll(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(setupTestDB(t))
	seedListings(t, repo,
		newListing("델타빌딩", domain.CategoryRent, 500, 50, 0, 10),
		newListing("알파빌딩", domain.CategoryRent, 500, 50, 0, 10),
	)

	deleted, _, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, _, err = repo.Search(ctx, dto.SearchRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
}
