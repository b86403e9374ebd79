package dto

import "listings-api/domain"

type CreateCollectionRequest struct {
	Title string `json:"title" binding:"required,max=200"`
	Memo  string `json:"memo"`
}

type UpdateCollectionRequest struct {
	Title *string `json:"title" binding:"omitempty,max=200"`
	Memo  *string `json:"memo"`
}

type AddItemRequest struct {
	ListingID uint `json:"listing_id" binding:"required"`
}

type RemoveItemsRequest struct {
	ListingIDs []uint `json:"listing_ids" binding:"required,min=1"`
}

// ReorderItem moves a collection item (by item id) to a position.
type ReorderItem struct {
	ID       uint `json:"id" binding:"required"`
	Position int  `json:"position" binding:"min=0"`
}

// CollectionSummary is a collection in the list view.
type CollectionSummary struct {
	domain.Collection
	ItemCount int64 `json:"item_count"`
}

// CollectionListing is a listing inside a collection.
type CollectionListing struct {
	ListingResponse
	CollectionItemID uint `json:"collection_item_id"`
	Position         int  `json:"position"`
}

// CollectionDetail is a collection with its listings in display order.
type CollectionDetail struct {
	domain.Collection
	Items []CollectionListing `json:"items"`
}

// SharedListing is the public view of a listing; office notes are left out.
type SharedListing struct {
	ID            uint             `json:"id"`
	BuildingName  string           `json:"building_name"`
	Floor         int              `json:"floor,omitempty"`
	ExclusiveArea float64          `json:"exclusive_area"`
	ContractArea  float64          `json:"contract_area"`
	Category      domain.Category  `json:"category"`
	PropertyType  string           `json:"property_type"`
	PriceLabel    string           `json:"price_label"`
	Amenities     domain.Amenities `json:"amenities"`
	ImageIDs      []uint           `json:"image_ids"`
}

// SharedCollection is the public read-only view of a collection.
type SharedCollection struct {
	Title string          `json:"title"`
	Memo  string          `json:"memo"`
	Items []SharedListing `json:"items"`
}

// AddItemResult reports whether the listing was newly added.
type AddItemResult struct {
	Item    domain.CollectionItem `json:"item"`
	Created bool                  `json:"created"`
}
