package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"listings-api/domain"
)

// ImageRepository persists image metadata. Blobs live in a storage.ImageStore.
type ImageRepository interface {
	Create(ctx context.Context, image *domain.ListingImage) error
	GetByID(ctx context.Context, id uint) (*domain.ListingImage, error)
	ListByListing(ctx context.Context, listingID uint) ([]domain.ListingImage, error)
	ListByListings(ctx context.Context, listingIDs []uint) (map[uint][]domain.ListingImage, error)
	Delete(ctx context.Context, id uint) error
	DeleteByListing(ctx context.Context, listingID uint) ([]domain.ListingImage, error)
	NextPosition(ctx context.Context, listingID uint) (int, error)
}

type imageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *domain.ListingImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) GetByID(ctx context.Context, id uint) (*domain.ListingImage, error) {
	var image domain.ListingImage
	err := r.db.WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("image %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) ListByListing(ctx context.Context, listingID uint) ([]domain.ListingImage, error) {
	var images []domain.ListingImage
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("position ASC").Order("id ASC").
		Find(&images).Error
	return images, err
}

func (r *imageRepository) ListByListings(ctx context.Context, listingIDs []uint) (map[uint][]domain.ListingImage, error) {
	out := make(map[uint][]domain.ListingImage)
	for start := 0; start < len(listingIDs); start += idChunk {
		chunk := listingIDs[start:min(start+idChunk, len(listingIDs))]
		var images []domain.ListingImage
		err := r.db.WithContext(ctx).
			Where("listing_id IN ?", chunk).
			Order("position ASC").Order("id ASC").
			Find(&images).Error
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			out[img.ListingID] = append(out[img.ListingID], img)
		}
	}
	return out, nil
}

func (r *imageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.ListingImage{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("image %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *imageRepository) DeleteByListing(ctx context.Context, listingID uint) ([]domain.ListingImage, error) {
	var removed []domain.ListingImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).Find(&removed).Error; err != nil {
			return err
		}
		return tx.Where("listing_id = ?", listingID).Delete(&domain.ListingImage{}).Error
	})
	return removed, err
}

func (r *imageRepository) NextPosition(ctx context.Context, listingID uint) (int, error) {
	var maxPos int
	err := r.db.WithContext(ctx).Model(&domain.ListingImage{}).
		Where("listing_id = ?", listingID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPos).Error
	return maxPos + 1, err
}
