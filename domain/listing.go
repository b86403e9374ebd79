package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Category separates monthly rentals from sales
type Category string

const (
	CategoryRent Category = "rent" // 월세
	CategorySale Category = "sale" // 매매
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryRent || c == CategorySale
}

// ListingStatus is the office-side availability of a listing.
type ListingStatus string

const (
	StatusAvailable  ListingStatus = "available"
	StatusReserved   ListingStatus = "reserved"
	StatusContracted ListingStatus = "contracted"
)

// Valid reports whether s is one of the known statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusContracted:
		return true
	}
	return false
}

// Source records how a listing entered the system.
type Source string

const (
	SourceImport Source = "import"
	SourceQuick  Source = "quick"
	SourceManual Source = "manual"
)

// Amenities holds the boolean option flags staff keep on a listing.
type Amenities struct {
	Parking         bool `json:"parking"`
	Interior        bool `json:"interior"`
	ImmediateMoveIn bool `json:"immediate_move_in"`
	Negotiable      bool `json:"negotiable"`
}

// Listing is a single property record offered for rent or sale.
// Areas are stored in pyung, money in units of 10,000 KRW.
type Listing struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	BuildingName  string         `gorm:"size:200;index" json:"building_name"`
	NameKey       string         `gorm:"size:200;index" json:"-"`
	UnitNumber    string         `gorm:"size:20" json:"unit_number,omitempty"`
	Floor         int            `json:"floor,omitempty"`
	ExclusiveArea float64        `json:"exclusive_area"`
	ContractArea  float64        `json:"contract_area"`
	Deposit       int64          `json:"deposit"`
	Rent          int64          `json:"rent"`
	SalePrice     int64          `json:"sale_price"`
	Category      Category       `gorm:"size:20;index" json:"category"`
	PropertyType  string         `gorm:"size:50;index" json:"property_type"`
	Status        ListingStatus  `gorm:"size:20;default:available" json:"status"`
	Note          string         `gorm:"type:text" json:"note"`
	NoteUpdatedAt *time.Time     `json:"note_updated_at,omitempty"`
	Amenities     Amenities      `gorm:"embedded" json:"amenities"`
	Source        Source         `gorm:"size:20" json:"source"`
	RawRow        datatypes.JSON `json:"raw_row,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName pins the table name
func (Listing) TableName() string {
	return "listings"
}

// SameFacts reports whether the imported facts of two listings are equal.
// Note, amenities and status are office data and are not compared.
func (l *Listing) SameFacts(o *Listing) bool {
	return l.BuildingName == o.BuildingName &&
		l.UnitNumber == o.UnitNumber &&
		l.Floor == o.Floor &&
		l.ExclusiveArea == o.ExclusiveArea &&
		l.ContractArea == o.ContractArea &&
		l.Deposit == o.Deposit &&
		l.Rent == o.Rent &&
		l.SalePrice == o.SalePrice &&
		l.Category == o.Category &&
		l.PropertyType == o.PropertyType
}

// CopyFacts overwrites the imported facts of l with those of src.
func (l *Listing) CopyFacts(src *Listing) {
	l.BuildingName = src.BuildingName
	l.NameKey = src.NameKey
	l.UnitNumber = src.UnitNumber
	l.Floor = src.Floor
	l.ExclusiveArea = src.ExclusiveArea
	l.ContractArea = src.ContractArea
	l.Deposit = src.Deposit
	l.Rent = src.Rent
	l.SalePrice = src.SalePrice
	l.Category = src.Category
	l.PropertyType = src.PropertyType
	l.RawRow = src.RawRow
	l.Source = src.Source
}
