package domain

import "time"

// ListingImage is a photo attached to a listing. StorageKey addresses the
// blob in whichever ImageStore is configured.
type ListingImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ListingID   uint      `gorm:"not null;index" json:"listing_id"`
	StorageKey  string    `gorm:"size:255;not null" json:"-"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	Size        int64     `json:"size"`
	Position    int       `gorm:"not null;default:0;index" json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}
