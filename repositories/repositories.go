package repositories

import "gorm.io/gorm"

// Repositories bundles the gorm repositories sharing one database handle.
type Repositories struct {
	Listings    ListingRepository
	Collections CollectionRepository
	Images      ImageRepository
	UploadLogs  UploadLogRepository
	Users       UserRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Listings:    NewListingRepository(db),
		Collections: NewCollectionRepository(db),
		Images:      NewImageRepository(db),
		UploadLogs:  NewUploadLogRepository(db),
		Users:       NewUserRepository(db),
	}
}
