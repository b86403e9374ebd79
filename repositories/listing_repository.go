package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
)

// idChunk bounds IN lists; sqlite caps bound variables per statement.
const idChunk = 500

// SyncPlan is everything a spreadsheet import writes. ApplySync runs it in
// one transaction.
type SyncPlan struct {
	Replace   bool // delete every listing before inserting
	DeleteIDs []uint
	Updates   []*domain.Listing
	Inserts   []*domain.Listing
	Log       *domain.UploadLog
}

// ListingRepository persists listings. Deleting a listing also deletes its
// collection items and image rows; the removed images are returned so their
// blobs can be cleaned up after commit.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	GetByID(ctx context.Context, id uint) (*domain.Listing, error)
	Update(ctx context.Context, listing *domain.Listing) error
	UpdateMany(ctx context.Context, listings []*domain.Listing) error
	Delete(ctx context.Context, id uint) ([]domain.ListingImage, error)
	DeleteAll(ctx context.Context) (int64, []domain.ListingImage, error)
	Search(ctx context.Context, request dto.SearchRequest) ([]domain.Listing, int64, error)
	FindAll(ctx context.Context) ([]domain.Listing, error)
	CountByCategory(ctx context.Context) (map[domain.Category]int64, error)
	ApplySync(ctx context.Context, plan SyncPlan) ([]domain.ListingImage, error)
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.db.WithContext(ctx).First(&listing, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

func (r *listingRepository) UpdateMany(ctx context.Context, listings []*domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range listings {
			if err := tx.Save(l).Error; err != nil {
				return fmt.Errorf("update listing %d: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (r *listingRepository) Delete(ctx context.Context, id uint) ([]domain.ListingImage, error) {
	var removed []domain.ListingImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Listing{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("listing %d: %w", id, ErrNotFound)
		}
		var err error
		removed, err = deleteListings(tx, []uint{id})
		return err
	})
	return removed, err
}

func (r *listingRepository) DeleteAll(ctx context.Context) (int64, []domain.ListingImage, error) {
	var (
		deleted int64
		removed []domain.ListingImage
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, removed, err = deleteAllListings(tx)
		return err
	})
	return deleted, removed, err
}

// likeEscaper makes user text literal inside a LIKE pattern, with '!' as
// the escape character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search filters, counts and pages listings.
func (r *listingRepository) Search(ctx context.Context, request dto.SearchRequest) ([]domain.Listing, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Listing{})

	if key := normalize.NameKey(request.Building); key != "" {
		q = q.Where("name_key LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(key)+"%")
	}
	if request.Category != "" {
		q = q.Where("category = ?", request.Category)
	}
	if request.PropertyType != "" {
		q = q.Where("property_type = ?", request.PropertyType)
	}
	if request.Status != "" {
		q = q.Where("status = ?", request.Status)
	}
	q = intRange(q, "deposit", request.MinDeposit, request.MaxDeposit)
	q = intRange(q, "rent", request.MinRent, request.MaxRent)
	q = intRange(q, "sale_price", request.MinSale, request.MaxSale)
	if request.MinArea != nil {
		q = q.Where("exclusive_area >= ?", *request.MinArea)
	}
	if request.MaxArea != nil {
		q = q.Where("exclusive_area <= ?", *request.MaxArea)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	for _, clause := range listingOrder(request.Sort) {
		q = q.Order(clause)
	}

	var listings []domain.Listing
	offset := (request.Page - 1) * request.PageSize
	if err := q.Offset(offset).Limit(request.PageSize).Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}
	return listings, total, nil
}

func (r *listingRepository) FindAll(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	err := r.db.WithContext(ctx).Order("id ASC").Find(&listings).Error
	return listings, err
}

func (r *listingRepository) CountByCategory(ctx context.Context) (map[domain.Category]int64, error) {
	var rows []struct {
		Category domain.Category
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Listing{}).
		Select("category, count(*) AS count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Category]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

func (r *listingRepository) ApplySync(ctx context.Context, plan SyncPlan) ([]domain.ListingImage, error) {
	var removed []domain.ListingImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if plan.Replace {
			_, removed, err = deleteAllListings(tx)
		} else {
			removed, err = deleteListings(tx, plan.DeleteIDs)
		}
		if err != nil {
			return err
		}

		for _, l := range plan.Updates {
			if err := tx.Save(l).Error; err != nil {
				return fmt.Errorf("update listing %d: %w", l.ID, err)
			}
		}
		if len(plan.Inserts) > 0 {
			if err := tx.CreateInBatches(plan.Inserts, 100).Error; err != nil {
				return fmt.Errorf("insert listings: %w", err)
			}
		}
		if plan.Log != nil {
			if err := tx.Create(plan.Log).Error; err != nil {
				return fmt.Errorf("write upload log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func deleteListings(tx *gorm.DB, ids []uint) ([]domain.ListingImage, error) {
	var removed []domain.ListingImage
	for start := 0; start < len(ids); start += idChunk {
		chunk := ids[start:min(start+idChunk, len(ids))]

		var images []domain.ListingImage
		if err := tx.Where("listing_id IN ?", chunk).Find(&images).Error; err != nil {
			return nil, err
		}
		removed = append(removed, images...)

		if err := tx.Where("listing_id IN ?", chunk).Delete(&domain.ListingImage{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Where("listing_id IN ?", chunk).Delete(&domain.CollectionItem{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Where("id IN ?", chunk).Delete(&domain.Listing{}).Error; err != nil {
			return nil, err
		}
	}
	return removed, nil
}

func deleteAllListings(tx *gorm.DB) (int64, []domain.ListingImage, error) {
	var removed []domain.ListingImage
	if err := tx.Find(&removed).Error; err != nil {
		return 0, nil, err
	}
	if err := tx.Where("1 = 1").Delete(&domain.ListingImage{}).Error; err != nil {
		return 0, nil, err
	}
	if err := tx.Where("1 = 1").Delete(&domain.CollectionItem{}).Error; err != nil {
		return 0, nil, err
	}
	res := tx.Where("1 = 1").Delete(&domain.Listing{})
	if res.Error != nil {
		return 0, nil, res.Error
	}
	return res.RowsAffected, removed, nil
}

func intRange(q *gorm.DB, column string, lo, hi *int64) *gorm.DB {
	if lo != nil {
		q = q.Where(column+" >= ?", *lo)
	}
	if hi != nil {
		q = q.Where(column+" <= ?", *hi)
	}
	return q
}

// listingOrder maps a sort key to ORDER BY clauses. Unknown keys sort by
// recency; validation happens in the service.
func listingOrder(sort string) []string {
	switch sort {
	case dto.SortRentAsc:
		return []string{"rent ASC", "deposit ASC", "id ASC"}
	case dto.SortRentDesc:
		return []string{"rent DESC", "deposit DESC", "id ASC"}
	case dto.SortSaleAsc:
		return []string{"sale_price ASC", "id ASC"}
	case dto.SortSaleDesc:
		return []string{"sale_price DESC", "id ASC"}
	case dto.SortAreaAsc:
		return []string{"exclusive_area ASC", "id ASC"}
	case dto.SortAreaDesc:
		return []string{"exclusive_area DESC", "id ASC"}
	case dto.SortName:
		return []string{"building_name ASC", "id ASC"}
	default:
		return []string{"created_at DESC", "id DESC"}
	}
}
