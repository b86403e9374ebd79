package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"listings-api/domain"
)

// UploadLogRepository reads the import history. Entries are written by
// ListingRepository.ApplySync inside the import transaction.
type UploadLogRepository interface {
	Latest(ctx context.Context) (*domain.UploadLog, error)
	List(ctx context.Context, limit int) ([]domain.UploadLog, error)
}

type uploadLogRepository struct {
	db *gorm.DB
}

func NewUploadLogRepository(db *gorm.DB) UploadLogRepository {
	return &uploadLogRepository{db: db}
}

func (r *uploadLogRepository) Latest(ctx context.Context) (*domain.UploadLog, error) {
	var entry domain.UploadLog
	err := r.db.WithContext(ctx).Order("uploaded_at DESC").Order("id DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("upload log: %w", ErrNotFound)
		}
		return nil, err
	}
	return &entry, nil
}

func (r *uploadLogRepository) List(ctx context.Context, limit int) ([]domain.UploadLog, error) {
	var entries []domain.UploadLog
	q := r.db.WithContext(ctx).Order("uploaded_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}
