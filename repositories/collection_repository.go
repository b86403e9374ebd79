package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"listings-api/domain"
)

// CollectionRepository persists collections and their items.
type CollectionRepository interface {
	Create(ctx context.Context, collection *domain.Collection) error
	GetByID(ctx context.Context, id uint) (*domain.Collection, error)
	GetByShareToken(ctx context.Context, token string) (*domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	ItemCounts(ctx context.Context) (map[uint]int64, error)
	Update(ctx context.Context, collection *domain.Collection) error
	Delete(ctx context.Context, id uint) error

	// Items returns the items of a collection with their listings, ordered
	// by position then item id.
	Items(ctx context.Context, collectionID uint) ([]domain.CollectionItem, error)
	// AddItem appends a listing. created is false when the listing was
	// already in the collection; the existing item is returned then.
	AddItem(ctx context.Context, collectionID, listingID uint) (item *domain.CollectionItem, created bool, err error)
	RemoveItems(ctx context.Context, collectionID uint, listingIDs []uint) (int64, error)
	ClearItems(ctx context.Context, collectionID uint) (int64, error)
	// UpdatePositions sets item positions by item id. Every id must belong
	// to the collection or nothing is changed.
	UpdatePositions(ctx context.Context, collectionID uint, positions map[uint]int) error
	// CollectionIDsByListing maps each listing to the collections holding it.
	CollectionIDsByListing(ctx context.Context, listingIDs []uint) (map[uint][]uint, error)
}

type collectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(ctx context.Context, collection *domain.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *collectionRepository) GetByID(ctx context.Context, id uint) (*domain.Collection, error) {
	var collection domain.Collection
	err := r.db.WithContext(ctx).First(&collection, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("collection %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &collection, nil
}

func (r *collectionRepository) GetByShareToken(ctx context.Context, token string) (*domain.Collection, error) {
	var collection domain.Collection
	err := r.db.WithContext(ctx).Where("share_token = ?", token).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("shared collection: %w", ErrNotFound)
		}
		return nil, err
	}
	return &collection, nil
}

func (r *collectionRepository) List(ctx context.Context) ([]domain.Collection, error) {
	var collections []domain.Collection
	err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Find(&collections).Error
	return collections, err
}

func (r *collectionRepository) ItemCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		CollectionID uint
		Count        int64
	}
	err := r.db.WithContext(ctx).Model(&domain.CollectionItem{}).
		Select("collection_id, count(*) AS count").
		Group("collection_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CollectionID] = row.Count
	}
	return counts, nil
}

func (r *collectionRepository) Update(ctx context.Context, collection *domain.Collection) error {
	return r.db.WithContext(ctx).Save(collection).Error
}

func (r *collectionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&domain.CollectionItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Collection{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("collection %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *collectionRepository) Items(ctx context.Context, collectionID uint) ([]domain.CollectionItem, error) {
	var items []domain.CollectionItem
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Where("collection_id = ?", collectionID).
		Order("position ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *collectionRepository) AddItem(ctx context.Context, collectionID, listingID uint) (*domain.CollectionItem, bool, error) {
	var (
		item    domain.CollectionItem
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("collection_id = ? AND listing_id = ?", collectionID, listingID).First(&item).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxPos int
		if err := tx.Model(&domain.CollectionItem{}).
			Where("collection_id = ?", collectionID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPos).Error; err != nil {
			return err
		}

		item = domain.CollectionItem{CollectionID: collectionID, ListingID: listingID, Position: maxPos + 1}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&domain.Collection{}).Where("id = ?", collectionID).Update("updated_at", item.CreatedAt).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &item, created, nil
}

func (r *collectionRepository) RemoveItems(ctx context.Context, collectionID uint, listingIDs []uint) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("collection_id = ? AND listing_id IN ?", collectionID, listingIDs).
		Delete(&domain.CollectionItem{})
	return res.RowsAffected, res.Error
}

func (r *collectionRepository) ClearItems(ctx context.Context, collectionID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("collection_id = ?", collectionID).Delete(&domain.CollectionItem{})
	return res.RowsAffected, res.Error
}

func (r *collectionRepository) UpdatePositions(ctx context.Context, collectionID uint, positions map[uint]int) error {
	if len(positions) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&domain.CollectionItem{}).
			Where("collection_id = ? AND id IN ?", collectionID, ids).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned != int64(len(ids)) {
			return ErrForeignItem
		}
		for id, pos := range positions {
			if err := tx.Model(&domain.CollectionItem{}).Where("id = ?", id).Update("position", pos).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *collectionRepository) CollectionIDsByListing(ctx context.Context, listingIDs []uint) (map[uint][]uint, error) {
	refs := make(map[uint][]uint)
	for start := 0; start < len(listingIDs); start += idChunk {
		chunk := listingIDs[start:min(start+idChunk, len(listingIDs))]
		var rows []struct {
			CollectionID uint
			ListingID    uint
		}
		err := r.db.WithContext(ctx).Model(&domain.CollectionItem{}).
			Select("collection_id, listing_id").
			Where("listing_id IN ?", chunk).
			Order("collection_id ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs[row.ListingID] = append(refs[row.ListingID], row.CollectionID)
		}
	}
	return refs, nil
}
