package models

import "time"

// Depot is a home depot that owns trains
type Depot struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Location    string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	ContactInfo string    `gorm:"type:varchar(255)" json:"contact_info,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Depot) TableName() string {
	return "depots"
}
