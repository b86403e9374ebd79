package migrations

import (
	"gorm.io/gorm"

	"listings-api/domain"
)

// All returns the schema history of the service.
func All() []*Migration {
	return []*Migration{
		{
			Version: "20250101000001",
			Name:    "create_users",
			Up:      createTables(&domain.User{}),
			Down:    dropTables(&domain.User{}),
		},
		{
			Version: "20250101000002",
			Name:    "create_listings",
			Up:      createTables(&domain.Listing{}),
			Down:    dropTables(&domain.Listing{}),
		},
		{
			Version: "20250101000003",
			Name:    "create_upload_logs",
			Up:      createTables(&domain.UploadLog{}),
			Down:    dropTables(&domain.UploadLog{}),
		},
		{
			Version: "20250101000004",
			Name:    "create_collections",
			Up:      createTables(&domain.Collection{}, &domain.CollectionItem{}),
			Down:    dropTables(&domain.CollectionItem{}, &domain.Collection{}),
		},
		{
			Version: "20250101000005",
			Name:    "create_listing_images",
			Up:      createTables(&domain.ListingImage{}),
			Down:    dropTables(&domain.ListingImage{}),
		},
	}
}

func createTables(models ...interface{}) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Migrator().CreateTable(models...)
	}
}

func dropTables(models ...interface{}) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(models...)
	}
}
