package domain

import "time"

// UploadLog is an append-only record of a spreadsheet import.
type UploadLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UploadedAt time.Time `gorm:"not null;index" json:"uploaded_at"`
	FileName   string    `gorm:"size:255" json:"file_name"`
	Mode       string    `gorm:"size:20" json:"mode"`
	Rows       int       `json:"rows"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
}

func (UploadLog) TableName() string {
	return "upload_logs"
}
