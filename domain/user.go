package domain

import "time"

// User is the office login credential
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"size:50;unique;not null" json:"username"`
	Password    string     `gorm:"size:200;not null" json:"-"` // never serialized
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName pins the table name
func (User) TableName() string {
	return "users"
}
