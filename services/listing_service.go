package services

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/normalize"
	"listings-api/repositories"
	"listings-api/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var validSorts = map[string]bool{
	dto.SortRentAsc:  true,
	dto.SortRentDesc: true,
	dto.SortSaleAsc:  true,
	dto.SortSaleDesc: true,
	dto.SortAreaAsc:  true,
	dto.SortAreaDesc: true,
	dto.SortName:     true,
	dto.SortRecent:   true,
}

// ListingService define la interfaz del inventario de avisos: búsqueda, CRUD y memos
type ListingService interface {
	Search(ctx context.Context, request dto.SearchRequest) (*dto.SearchResponse, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
	Get(ctx context.Context, id uint) (*dto.ListingDetailResponse, error)
	Create(ctx context.Context, req dto.CreateListingRequest) (*domain.Listing, error)
	QuickEntry(ctx context.Context, req dto.QuickEntryRequest) (*domain.Listing, error)
	Update(ctx context.Context, id uint, req dto.UpdateListingRequest) (*domain.Listing, error)
	GetMemo(ctx context.Context, id uint) (*dto.MemoResponse, error)
	UpdateMemo(ctx context.Context, id uint, req dto.UpdateMemoRequest) (*dto.MemoResponse, error)
	Delete(ctx context.Context, id uint) error
	// DeleteAll borra todo el inventario. confirm tiene que ser true
	DeleteAll(ctx context.Context, confirm bool) (*dto.DeleteAllResponse, error)
}

type listingService struct {
	repos    repositories.Repositories
	cache    repositories.CacheRepository
	store    storage.ImageStore
	notifier *ChangeNotifier
	n        *normalize.Normalizer
	logger   *zap.Logger
	now      func() time.Time
}

func NewListingService(
	repos repositories.Repositories,
	cache repositories.CacheRepository,
	store storage.ImageStore,
	notifier *ChangeNotifier,
	n *normalize.Normalizer,
	logger *zap.Logger,
) ListingService {
	return &listingService{
		repos:    repos,
		cache:    cache,
		store:    store,
		notifier: notifier,
		n:        n,
		logger:   logger,
		now:      time.Now,
	}
}

// Search implementa la búsqueda con caché: responde desde la caché si puede
// y si no desde la base de datos
func (s *listingService) Search(ctx context.Context, request dto.SearchRequest) (*dto.SearchResponse, error) {
	// 1. Validar y aplicar valores por defecto (la clave de caché se genera después)
	if err := validateSearch(&request); err != nil {
		return nil, err
	}
	cacheKey := searchCacheKey(request)

	// 2. Consultar caché primero
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}
	stamp := s.cache.Stamp()

	// 3. Si no hay hit, consultar la base de datos
	listings, total, err := s.repos.Listings.Search(ctx, request)
	if err != nil {
		return nil, err
	}
	results, err := s.decorate(ctx, listings)
	if err != nil {
		return nil, err
	}
	lastUpload, err := s.lastUploadAt(ctx)
	if err != nil {
		return nil, err
	}

	response := &dto.SearchResponse{
		Results:      results,
		TotalResults: total,
		Page:         request.Page,
		PageSize:     request.PageSize,
		TotalPages:   int((total + int64(request.PageSize) - 1) / int64(request.PageSize)),
		LastUploadAt: lastUpload,
	}

	// 4. Guardar resultado en caché, salvo que haya habido una escritura en el medio
	s.cache.Set(cacheKey, stamp, response)
	return response, nil
}

func validateSearch(r *dto.SearchRequest) error {
	r.Building = strings.TrimSpace(r.Building)
	r.PropertyType = strings.TrimSpace(r.PropertyType)

	if r.Category != "" && !r.Category.Valid() {
		return validationErrorf("unknown category %q", r.Category)
	}
	if r.Status != "" && !r.Status.Valid() {
		return validationErrorf("unknown status %q", r.Status)
	}
	if err := checkIntRange("deposit", r.MinDeposit, r.MaxDeposit); err != nil {
		return err
	}
	if err := checkIntRange("rent", r.MinRent, r.MaxRent); err != nil {
		return err
	}
	if err := checkIntRange("sale", r.MinSale, r.MaxSale); err != nil {
		return err
	}
	if r.MinArea != nil && *r.MinArea < 0 || r.MaxArea != nil && *r.MaxArea < 0 {
		return validationErrorf("area bounds must not be negative")
	}
	if r.MinArea != nil && r.MaxArea != nil && *r.MinArea > *r.MaxArea {
		return validationErrorf("min_area is greater than max_area")
	}

	if r.Sort == "" {
		switch r.Category {
		case domain.CategoryRent:
			r.Sort = dto.SortRentAsc
		case domain.CategorySale:
			r.Sort = dto.SortSaleAsc
		default:
			r.Sort = dto.SortRecent
		}
	}
	if !validSorts[r.Sort] {
		return validationErrorf("unknown sort %q", r.Sort)
	}

	if r.Page < 0 || r.PageSize < 0 {
		return validationErrorf("page and page_size must not be negative")
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = defaultPageSize
	}
	if r.PageSize > maxPageSize {
		return validationErrorf("page_size may not exceed %d", maxPageSize)
	}
	return nil
}

func checkIntRange(name string, lo, hi *int64) error {
	if lo != nil && *lo < 0 || hi != nil && *hi < 0 {
		return validationErrorf("%s bounds must not be negative", name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return validationErrorf("min_%s is greater than max_%s", name, name)
	}
	return nil
}

// searchCacheKey genera una clave de caché hasheando el request normalizado.
// El edificio se normaliza igual que en la query, así que las variantes de
// espaciado comparten entrada
func searchCacheKey(r dto.SearchRequest) string {
	keyParts := []string{
		"building:" + normalize.NameKey(r.Building),
		"category:" + string(r.Category),
		"type:" + r.PropertyType,
		"status:" + string(r.Status),
		"deposit:" + int64Bound(r.MinDeposit) + "-" + int64Bound(r.MaxDeposit),
		"rent:" + int64Bound(r.MinRent) + "-" + int64Bound(r.MaxRent),
		"sale:" + int64Bound(r.MinSale) + "-" + int64Bound(r.MaxSale),
		"area:" + floatBound(r.MinArea) + "-" + floatBound(r.MaxArea),
		"sort:" + r.Sort,
		fmt.Sprintf("page:%d", r.Page),
		fmt.Sprintf("page_size:%d", r.PageSize),
	}
	hash := md5.Sum([]byte(strings.Join(keyParts, "|")))
	return fmt.Sprintf("%s%x", repositories.CachePrefix, hash)
}

func int64Bound(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func floatBound(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// decorate agrega la etiqueta de precio y las colecciones de cada aviso
func (s *listingService) decorate(ctx context.Context, listings []domain.Listing) ([]dto.ListingResponse, error) {
	ids := make([]uint, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
	}
	refs, err := s.repos.Collections.CollectionIDsByListing(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load collection refs: %w", err)
	}

	out := make([]dto.ListingResponse, len(listings))
	for i := range listings {
		out[i] = listingResponse(&listings[i], refs[listings[i].ID])
	}
	return out, nil
}

func listingResponse(l *domain.Listing, collectionIDs []uint) dto.ListingResponse {
	if collectionIDs == nil {
		collectionIDs = []uint{}
	}
	return dto.ListingResponse{
		Listing:       *l,
		PriceLabel:    normalize.PriceLabel(l),
		CollectionIDs: collectionIDs,
	}
}

func (s *listingService) lastUploadAt(ctx context.Context) (*time.Time, error) {
	entry, err := s.repos.UploadLogs.Latest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load upload log: %w", err)
	}
	return &entry.UploadedAt, nil
}

func (s *listingService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	counts, err := s.repos.Listings.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count listings: %w", err)
	}
	lastUpload, err := s.lastUploadAt(ctx)
	if err != nil {
		return nil, err
	}

	stats := &dto.StatsResponse{
		Rent:         counts[domain.CategoryRent],
		Sale:         counts[domain.CategorySale],
		LastUploadAt: lastUpload,
	}
	for _, c := range counts {
		stats.Total += c
	}
	return stats, nil
}

func (s *listingService) Get(ctx context.Context, id uint) (*dto.ListingDetailResponse, error) {
	listing, err := s.repos.Listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	refs, err := s.repos.Collections.CollectionIDsByListing(ctx, []uint{id})
	if err != nil {
		return nil, fmt.Errorf("load collection refs: %w", err)
	}
	images, err := s.repos.Images.ListByListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	if images == nil {
		images = []domain.ListingImage{}
	}
	return &dto.ListingDetailResponse{
		ListingResponse: listingResponse(listing, refs[id]),
		Images:          images,
	}, nil
}

func (s *listingService) Create(ctx context.Context, req dto.CreateListingRequest) (*domain.Listing, error) {
	// 1. Nombre
	cleaned := s.n.CleanBuildingName(req.BuildingName)
	if cleaned == "" {
		return nil, validationErrorf("building_name is required")
	}
	listing := &domain.Listing{Source: domain.SourceManual, Status: domain.StatusAvailable}
	normalize.ApplyName(listing, cleaned)

	// 2. Precio (el texto de precio tiene prioridad sobre los números sueltos)
	if req.Price != "" {
		price, err := normalize.ParsePrice(req.Price)
		if err != nil {
			return nil, validationErrorf("invalid price: %v", err)
		}
		price.Apply(listing)
	} else {
		if req.Deposit < 0 || req.Rent < 0 || req.SalePrice < 0 {
			return nil, validationErrorf("prices must not be negative")
		}
		category := req.Category
		if category == "" {
			category = domain.CategoryRent
			if req.SalePrice > 0 {
				category = domain.CategorySale
			}
		}
		if !category.Valid() {
			return nil, validationErrorf("unknown category %q", category)
		}
		listing.Category = category
		listing.Deposit, listing.Rent, listing.SalePrice = req.Deposit, req.Rent, req.SalePrice
	}

	// 3. Resto de los campos
	if req.ExclusiveArea < 0 || req.ContractArea < 0 {
		return nil, validationErrorf("areas must not be negative")
	}
	listing.ExclusiveArea = req.ExclusiveArea
	listing.ContractArea = req.ContractArea
	listing.PropertyType = s.n.PropertyType(req.PropertyType)
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, validationErrorf("unknown status %q", req.Status)
		}
		listing.Status = req.Status
	}
	listing.Amenities = req.Amenities
	if note := strings.TrimSpace(req.Note); note != "" {
		now := s.now()
		listing.Note = note
		listing.NoteUpdatedAt = &now
	}

	// 4. Guardar
	if err := s.repos.Listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	s.logger.Info("listing created", zap.Uint("listing_id", listing.ID), zap.String("building", listing.BuildingName))
	s.notifier.Changed(ctx, domain.EventCreated, listing.ID)
	return listing, nil
}

func (s *listingService) QuickEntry(ctx context.Context, req dto.QuickEntryRequest) (*domain.Listing, error) {
	entry := normalize.ParseQuickEntry(req.Text)
	cleaned := s.n.CleanBuildingName(entry.Building)
	if cleaned == "" {
		return nil, validationErrorf("the first line must name the building")
	}
	if entry.Price == "" {
		return nil, validationErrorf("no price line (임대 or 매매) found")
	}
	price, err := normalize.ParsePrice(entry.Price)
	if err != nil {
		return nil, validationErrorf("invalid price: %v", err)
	}

	propertyType := strings.TrimSpace(req.PropertyType)
	if propertyType == "" {
		propertyType = s.n.QuickEntryType()
	}

	listing := &domain.Listing{
		ExclusiveArea: entry.ExclusiveArea,
		ContractArea:  entry.ContractArea,
		PropertyType:  s.n.PropertyType(propertyType),
		Status:        domain.StatusAvailable,
		Source:        domain.SourceQuick,
	}
	normalize.ApplyName(listing, cleaned)
	price.Apply(listing)

	if err := s.repos.Listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	s.logger.Info("quick entry listing created", zap.Uint("listing_id", listing.ID), zap.String("building", listing.BuildingName))
	s.notifier.Changed(ctx, domain.EventCreated, listing.ID)
	return listing, nil
}

func (s *listingService) Update(ctx context.Context, id uint, req dto.UpdateListingRequest) (*domain.Listing, error) {
	listing, err := s.repos.Listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.BuildingName != nil {
		cleaned := s.n.CleanBuildingName(*req.BuildingName)
		if cleaned == "" {
			return nil, validationErrorf("building_name must not be empty")
		}
		normalize.ApplyName(listing, cleaned)
	}

	if req.Price != nil {
		price, err := normalize.ParsePrice(*req.Price)
		if err != nil {
			return nil, validationErrorf("invalid price: %v", err)
		}
		price.Apply(listing)
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, validationErrorf("unknown category %q", *req.Category)
		}
		listing.Category = *req.Category
	}
	for _, field := range []struct {
		name  string
		value *int64
		dst   *int64
	}{
		{"deposit", req.Deposit, &listing.Deposit},
		{"rent", req.Rent, &listing.Rent},
		{"sale_price", req.SalePrice, &listing.SalePrice},
	} {
		if field.value == nil {
			continue
		}
		if *field.value < 0 {
			return nil, validationErrorf("%s must not be negative", field.name)
		}
		*field.dst = *field.value
	}

	if req.ExclusiveArea != nil {
		if *req.ExclusiveArea < 0 {
			return nil, validationErrorf("exclusive_area must not be negative")
		}
		listing.ExclusiveArea = *req.ExclusiveArea
	}
	if req.ContractArea != nil {
		if *req.ContractArea < 0 {
			return nil, validationErrorf("contract_area must not be negative")
		}
		listing.ContractArea = *req.ContractArea
	}
	if req.PropertyType != nil {
		listing.PropertyType = s.n.PropertyType(*req.PropertyType)
	}
	if err := s.applyMemo(listing, req.Note, req.Amenities, req.Status); err != nil {
		return nil, err
	}

	if err := s.repos.Listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	s.notifier.Changed(ctx, domain.EventUpdated, listing.ID)
	return listing, nil
}

func (s *listingService) applyMemo(l *domain.Listing, note *string, amenities *domain.Amenities, status *domain.ListingStatus) error {
	if status != nil {
		if !status.Valid() {
			return validationErrorf("unknown status %q", *status)
		}
		l.Status = *status
	}
	if note != nil {
		now := s.now()
		l.Note = strings.TrimSpace(*note)
		l.NoteUpdatedAt = &now
	}
	if amenities != nil {
		l.Amenities = *amenities
	}
	return nil
}

func memoResponse(l *domain.Listing) *dto.MemoResponse {
	return &dto.MemoResponse{
		ListingID:     l.ID,
		Note:          l.Note,
		Amenities:     l.Amenities,
		Status:        l.Status,
		NoteUpdatedAt: l.NoteUpdatedAt,
	}
}

func (s *listingService) GetMemo(ctx context.Context, id uint) (*dto.MemoResponse, error) {
	listing, err := s.repos.Listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return memoResponse(listing), nil
}

func (s *listingService) UpdateMemo(ctx context.Context, id uint, req dto.UpdateMemoRequest) (*dto.MemoResponse, error) {
	listing, err := s.repos.Listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyMemo(listing, req.Note, req.Amenities, req.Status); err != nil {
		return nil, err
	}
	if err := s.repos.Listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update memo: %w", err)
	}
	s.notifier.Changed(ctx, domain.EventUpdated, listing.ID)
	return memoResponse(listing), nil
}

func (s *listingService) Delete(ctx context.Context, id uint) error {
	removed, err := s.repos.Listings.Delete(ctx, id)
	if err != nil {
		return err
	}
	removeBlobs(ctx, s.store, removed, s.logger)
	s.logger.Info("listing deleted", zap.Uint("listing_id", id), zap.Int("images", len(removed)))
	s.notifier.Changed(ctx, domain.EventDeleted, id)
	return nil
}

func (s *listingService) DeleteAll(ctx context.Context, confirm bool) (*dto.DeleteAllResponse, error) {
	if !confirm {
		return nil, validationErrorf("deleting every listing needs confirm=true")
	}
	deleted, removed, err := s.repos.Listings.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete listings: %w", err)
	}
	removeBlobs(ctx, s.store, removed, s.logger)
	s.logger.Warn("all listings deleted", zap.Int64("count", deleted), zap.Int("images", len(removed)))
	s.notifier.Changed(ctx, domain.EventDeleted)
	return &dto.DeleteAllResponse{Deleted: deleted}, nil
}
