package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
	"listings-api/repositories"
)

const maxTitleRunes = 200

var collectionSorts = map[string]bool{
	dto.SortName:     true,
	dto.SortAreaAsc:  true,
	dto.SortAreaDesc: true,
	dto.SortRentAsc:  true,
	dto.SortRentDesc: true,
	dto.SortSaleAsc:  true,
	dto.SortSaleDesc: true,
}

// CollectionService define la interfaz para las colecciones de avisos armadas por la oficina
type CollectionService interface {
	List(ctx context.Context) ([]dto.CollectionSummary, error)
	Create(ctx context.Context, req dto.CreateCollectionRequest) (*domain.Collection, error)
	// Get devuelve una colección con sus avisos, ordenados por posición
	// salvo que se indique otro orden
	Get(ctx context.Context, id uint, sortKey string) (*dto.CollectionDetail, error)
	Update(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*domain.Collection, error)
	Delete(ctx context.Context, id uint) error
	AddItem(ctx context.Context, id, listingID uint) (*dto.AddItemResult, error)
	RemoveItem(ctx context.Context, id, listingID uint) error
	RemoveItems(ctx context.Context, id uint, listingIDs []uint) (int64, error)
	ClearItems(ctx context.Context, id uint) (int64, error)
	Reorder(ctx context.Context, id uint, items []dto.ReorderItem) error
	// Shared es la vista pública detrás de un token compartido
	Shared(ctx context.Context, token string) (*dto.SharedCollection, error)
	// CheckSharedImage devuelve ErrNotFound si la imagen no pertenece a un
	// aviso de la colección compartida
	CheckSharedImage(ctx context.Context, token string, imageID uint) error
}

type collectionService struct {
	collections repositories.CollectionRepository
	listings    repositories.ListingRepository
	images      repositories.ImageRepository
	notifier    *ChangeNotifier
	logger      *zap.Logger
}

func NewCollectionService(repos repositories.Repositories, notifier *ChangeNotifier, logger *zap.Logger) CollectionService {
	return &collectionService{
		collections: repos.Collections,
		listings:    repos.Listings,
		images:      repos.Images,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *collectionService) List(ctx context.Context) ([]dto.CollectionSummary, error) {
	collections, err := s.collections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	counts, err := s.collections.ItemCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count collection items: %w", err)
	}

	out := make([]dto.CollectionSummary, len(collections))
	for i, c := range collections {
		out[i] = dto.CollectionSummary{Collection: c, ItemCount: counts[c.ID]}
	}
	return out, nil
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", validationErrorf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return "", validationErrorf("title may not exceed %d characters", maxTitleRunes)
	}
	return title, nil
}

func (s *collectionService) Create(ctx context.Context, req dto.CreateCollectionRequest) (*domain.Collection, error) {
	title, err := checkTitle(req.Title)
	if err != nil {
		return nil, err
	}
	collection := &domain.Collection{
		Title:      title,
		Memo:       strings.TrimSpace(req.Memo),
		ShareToken: uuid.NewString(),
	}
	if err := s.collections.Create(ctx, collection); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("collection created", zap.Uint("collection_id", collection.ID), zap.String("title", title))
	return collection, nil
}

func (s *collectionService) Get(ctx context.Context, id uint, sortKey string) (*dto.CollectionDetail, error) {
	if sortKey != "" && !collectionSorts[sortKey] {
		return nil, validationErrorf("unknown sort %q", sortKey)
	}

	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.collections.Items(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load collection items: %w", err)
	}

	listingIDs := make([]uint, 0, len(items))
	for _, item := range items {
		if item.Listing != nil {
			listingIDs = append(listingIDs, item.ListingID)
		}
	}
	refs, err := s.collections.CollectionIDsByListing(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("load collection refs: %w", err)
	}

	detail := &dto.CollectionDetail{Collection: *collection, Items: make([]dto.CollectionListing, 0, len(items))}
	for _, item := range items {
		if item.Listing == nil {
			continue
		}
		detail.Items = append(detail.Items, dto.CollectionListing{
			ListingResponse:  listingResponse(item.Listing, refs[item.ListingID]),
			CollectionItemID: item.ID,
			Position:         item.Position,
		})
	}
	sortCollectionItems(detail.Items, sortKey)
	return detail, nil
}

// sortCollectionItems reordena la vista de detalle. Los items llegan por
// posición y el orden estable la conserva entre claves iguales
func sortCollectionItems(items []dto.CollectionListing, sortKey string) {
	var less func(a, b *domain.Listing) bool
	switch sortKey {
	case dto.SortName:
		less = func(a, b *domain.Listing) bool { return a.BuildingName < b.BuildingName }
	case dto.SortAreaAsc:
		less = func(a, b *domain.Listing) bool { return a.ExclusiveArea < b.ExclusiveArea }
	case dto.SortAreaDesc:
		less = func(a, b *domain.Listing) bool { return a.ExclusiveArea > b.ExclusiveArea }
	case dto.SortRentAsc:
		less = func(a, b *domain.Listing) bool {
			if a.Rent != b.Rent {
				return a.Rent < b.Rent
			}
			return a.Deposit < b.Deposit
		}
	case dto.SortRentDesc:
		less = func(a, b *domain.Listing) bool {
			if a.Rent != b.Rent {
				return a.Rent > b.Rent
			}
			return a.Deposit > b.Deposit
		}
	case dto.SortSaleAsc:
		less = func(a, b *domain.Listing) bool { return a.SalePrice < b.SalePrice }
	case dto.SortSaleDesc:
		less = func(a, b *domain.Listing) bool { return a.SalePrice > b.SalePrice }
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(&items[i].Listing, &items[j].Listing)
	})
}

func (s *collectionService) Update(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*domain.Collection, error) {
	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := checkTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		collection.Title = title
	}
	if req.Memo != nil {
		collection.Memo = strings.TrimSpace(*req.Memo)
	}
	if err := s.collections.Update(ctx, collection); err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	return collection, nil
}

func (s *collectionService) Delete(ctx context.Context, id uint) error {
	if err := s.collections.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("collection deleted", zap.Uint("collection_id", id))
	s.notifier.Changed(ctx, domain.EventCollectionsChanged)
	return nil
}

func (s *collectionService) AddItem(ctx context.Context, id, listingID uint) (*dto.AddItemResult, error) {
	if _, err := s.collections.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}

	item, created, err := s.collections.AddItem(ctx, id, listingID)
	if err != nil {
		return nil, fmt.Errorf("add collection item: %w", err)
	}
	if created {
		s.notifier.Changed(ctx, domain.EventCollectionsChanged, listingID)
	}
	return &dto.AddItemResult{Item: *item, Created: created}, nil
}

func (s *collectionService) RemoveItem(ctx context.Context, id, listingID uint) error {
	if _, err := s.collections.GetByID(ctx, id); err != nil {
		return err
	}
	removed, err := s.collections.RemoveItems(ctx, id, []uint{listingID})
	if err != nil {
		return fmt.Errorf("remove collection item: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("listing %d in collection %d: %w", listingID, id, repositories.ErrNotFound)
	}
	s.notifier.Changed(ctx, domain.EventCollectionsChanged, listingID)
	return nil
}

func (s *collectionService) RemoveItems(ctx context.Context, id uint, listingIDs []uint) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, validationErrorf("listing_ids must not be empty")
	}
	if _, err := s.collections.GetByID(ctx, id); err != nil {
		return 0, err
	}
	removed, err := s.collections.RemoveItems(ctx, id, listingIDs)
	if err != nil {
		return 0, fmt.Errorf("remove collection items: %w", err)
	}
	if removed > 0 {
		s.notifier.Changed(ctx, domain.EventCollectionsChanged, listingIDs...)
	}
	return removed, nil
}

func (s *collectionService) ClearItems(ctx context.Context, id uint) (int64, error) {
	if _, err := s.collections.GetByID(ctx, id); err != nil {
		return 0, err
	}
	removed, err := s.collections.ClearItems(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("clear collection: %w", err)
	}
	if removed > 0 {
		s.notifier.Changed(ctx, domain.EventCollectionsChanged)
	}
	return removed, nil
}

func (s *collectionService) Reorder(ctx context.Context, id uint, items []dto.ReorderItem) error {
	if len(items) == 0 {
		return validationErrorf("no items to reorder")
	}
	positions := make(map[uint]int, len(items))
	for _, item := range items {
		if item.Position < 0 {
			return validationErrorf("position of item %d must not be negative", item.ID)
		}
		if _, dup := positions[item.ID]; dup {
			return validationErrorf("item %d is listed twice", item.ID)
		}
		positions[item.ID] = item.Position
	}

	if _, err := s.collections.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.collections.UpdatePositions(ctx, id, positions); err != nil {
		if errors.Is(err, repositories.ErrForeignItem) {
			return validationErrorf("%v", err)
		}
		return fmt.Errorf("reorder collection: %w", err)
	}
	return nil
}

func (s *collectionService) Shared(ctx context.Context, token string) (*dto.SharedCollection, error) {
	collection, err := s.collections.GetByShareToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	items, err := s.collections.Items(ctx, collection.ID)
	if err != nil {
		return nil, fmt.Errorf("load collection items: %w", err)
	}

	listingIDs := make([]uint, 0, len(items))
	for _, item := range items {
		listingIDs = append(listingIDs, item.ListingID)
	}
	images, err := s.images.ListByListings(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	shared := &dto.SharedCollection{Title: collection.Title, Memo: collection.Memo, Items: []dto.SharedListing{}}
	for _, item := range items {
		l := item.Listing
		if l == nil {
			continue
		}
		imageIDs := make([]uint, 0, len(images[l.ID]))
		for _, img := range images[l.ID] {
			imageIDs = append(imageIDs, img.ID)
		}
		shared.Items = append(shared.Items, dto.SharedListing{
			ID:            l.ID,
			BuildingName:  l.BuildingName,
			Floor:         l.Floor,
			ExclusiveArea: l.ExclusiveArea,
			ContractArea:  l.ContractArea,
			Category:      l.Category,
			PropertyType:  l.PropertyType,
			PriceLabel:    normalize.PriceLabel(l),
			Amenities:     l.Amenities,
			ImageIDs:      imageIDs,
		})
	}
	return shared, nil
}

func (s *collectionService) CheckSharedImage(ctx context.Context, token string, imageID uint) error {
	collection, err := s.collections.GetByShareToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	refs, err := s.collections.CollectionIDsByListing(ctx, []uint{image.ListingID})
	if err != nil {
		return fmt.Errorf("load collection refs: %w", err)
	}
	for _, cid := range refs[image.ListingID] {
		if cid == collection.ID {
			return nil
		}
	}
	return fmt.Errorf("image %d in shared collection: %w", imageID, repositories.ErrNotFound)
}
