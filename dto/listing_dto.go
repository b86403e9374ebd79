package dto

import (
	"time"

	"listings-api/domain"
)

// Sort keys shared by listing search and collection detail.
const (
	SortRentAsc  = "rent_asc"
	SortRentDesc = "rent_desc"
	SortSaleAsc  = "sale_asc"
	SortSaleDesc = "sale_desc"
	SortAreaAsc  = "area_asc"
	SortAreaDesc = "area_desc"
	SortName     = "name"
	SortRecent   = "recent"
)

// SearchRequest holds the listing search filters. Nil bounds are unset.
type SearchRequest struct {
	Building     string               `json:"building,omitempty"`
	Category     domain.Category      `json:"category,omitempty"`
	PropertyType string               `json:"property_type,omitempty"`
	Status       domain.ListingStatus `json:"status,omitempty"`
	MinDeposit   *int64               `json:"min_deposit,omitempty"`
	MaxDeposit   *int64               `json:"max_deposit,omitempty"`
	MinRent      *int64               `json:"min_rent,omitempty"`
	MaxRent      *int64               `json:"max_rent,omitempty"`
	MinSale      *int64               `json:"min_sale,omitempty"`
	MaxSale      *int64               `json:"max_sale,omitempty"`
	MinArea      *float64             `json:"min_area,omitempty"`
	MaxArea      *float64             `json:"max_area,omitempty"`
	Sort         string               `json:"sort,omitempty"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
}

// ListingResponse is a listing as shown in lists.
type ListingResponse struct {
	domain.Listing
	PriceLabel    string `json:"price_label"`
	CollectionIDs []uint `json:"collection_ids"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Results      []ListingResponse `json:"results"`
	TotalResults int64             `json:"total_results"`
	Page         int               `json:"page"`
	PageSize     int               `json:"page_size"`
	TotalPages   int               `json:"total_pages"`
	LastUploadAt *time.Time        `json:"last_upload_at,omitempty"`
}

// ListingDetailResponse adds images to a listing.
type ListingDetailResponse struct {
	ListingResponse
	Images []domain.ListingImage `json:"images"`
}

// StatsResponse summarises the inventory.
type StatsResponse struct {
	Total        int64      `json:"total"`
	Rent         int64      `json:"rent"`
	Sale         int64      `json:"sale"`
	LastUploadAt *time.Time `json:"last_upload_at,omitempty"`
}

// CreateListingRequest is the body of POST /api/listings. Price is either
// a price string ("2000/180", "3억5000") or the explicit numbers.
type CreateListingRequest struct {
	BuildingName  string               `json:"building_name" binding:"required"`
	Price         string               `json:"price"`
	Category      domain.Category      `json:"category"`
	Deposit       int64                `json:"deposit" binding:"min=0"`
	Rent          int64                `json:"rent" binding:"min=0"`
	SalePrice     int64                `json:"sale_price" binding:"min=0"`
	ExclusiveArea float64              `json:"exclusive_area" binding:"min=0"`
	ContractArea  float64              `json:"contract_area" binding:"min=0"`
	PropertyType  string               `json:"property_type"`
	Status        domain.ListingStatus `json:"status"`
	Note          string               `json:"note"`
	Amenities     domain.Amenities     `json:"amenities"`
}

// QuickEntryRequest is the body of POST /api/listings/quick.
type QuickEntryRequest struct {
	Text         string `json:"text" binding:"required"`
	PropertyType string `json:"property_type"`
}

// UpdateListingRequest is a partial update; nil fields are left alone.
type UpdateListingRequest struct {
	BuildingName  *string               `json:"building_name"`
	Price         *string               `json:"price"`
	Category      *domain.Category      `json:"category"`
	Deposit       *int64                `json:"deposit"`
	Rent          *int64                `json:"rent"`
	SalePrice     *int64                `json:"sale_price"`
	ExclusiveArea *float64              `json:"exclusive_area"`
	ContractArea  *float64              `json:"contract_area"`
	PropertyType  *string               `json:"property_type"`
	Status        *domain.ListingStatus `json:"status"`
	Note          *string               `json:"note"`
	Amenities     *domain.Amenities     `json:"amenities"`
}

// MemoResponse is the office-side data of a listing.
type MemoResponse struct {
	ListingID     uint                 `json:"listing_id"`
	Note          string               `json:"note"`
	Amenities     domain.Amenities     `json:"amenities"`
	Status        domain.ListingStatus `json:"status"`
	NoteUpdatedAt *time.Time           `json:"note_updated_at,omitempty"`
}

// UpdateMemoRequest is the body of PUT /api/listings/:id/memo.
type UpdateMemoRequest struct {
	Note      *string               `json:"note"`
	Amenities *domain.Amenities     `json:"amenities"`
	Status    *domain.ListingStatus `json:"status"`
}

// DeleteAllResponse reports a bulk delete.
type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}
