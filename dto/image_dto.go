package dto

import "listings-api/domain"

// UploadedFile is an image as received from a client.
type UploadedFile struct {
	Name string
	Size int64
	Data []byte
}

// ImageUploadResponse lists the images that were stored.
type ImageUploadResponse struct {
	Images []domain.ListingImage `json:"images"`
}

// ZipFolderMatch is a ZIP folder whose images were attached to a listing.
type ZipFolderMatch struct {
	Folder    string `json:"folder"`
	ListingID uint   `json:"listing_id"`
	Count     int    `json:"count"`
}

// ZipFolderMiss is a ZIP folder no listing was found for.
type ZipFolderMiss struct {
	Folder string `json:"folder"`
	Reason string `json:"reason"`
}

// ZipImportReport is the outcome of a bulk ZIP image import.
type ZipImportReport struct {
	Matched   []ZipFolderMatch `json:"matched"`
	Unmatched []ZipFolderMiss  `json:"unmatched"`
	Stored    int              `json:"stored"`
	Skipped   int              `json:"skipped"`
}
