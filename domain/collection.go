package domain

import "time"

// Collection is a staff-curated group of listings
type Collection struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Memo       string    `gorm:"type:text" json:"memo"`
	ShareToken string    `gorm:"size:36;uniqueIndex" json:"share_token"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Collection) TableName() string {
	return "collections"
}

// CollectionItem links a listing into a collection at a display position.
type CollectionItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CollectionID uint      `gorm:"not null;uniqueIndex:idx_collection_listing" json:"collection_id"`
	ListingID    uint      `gorm:"not null;uniqueIndex:idx_collection_listing;index" json:"listing_id"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	Listing      *Listing  `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CollectionItem) TableName() string {
	return "collection_items"
}
