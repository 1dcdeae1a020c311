package models

import "time"

// Train types in service
const (
	TrainTypeLastochka = "Ласточка"
	TrainTypeFinist    = "Финист"
	TrainTypeSapsan    = "Сапсан"
)

// Train is a single trainset assigned to a depot
type Train struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Type            string    `gorm:"type:varchar(50);not null;index" json:"type"`
	IsManualMileage bool      `gorm:"default:false;index" json:"is_manual_mileage"`
	DepotID         uint      `gorm:"not null;index" json:"depot_id"`
	Depot           *Depot    `gorm:"foreignKey:DepotID;constraint:OnDelete:CASCADE" json:"depot,omitempty"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Train) TableName() string {
	return "trains"
}

// ValidType reports whether t is one of the known train types
func ValidType(t string) bool {
	switch t {
	case TrainTypeLastochka, TrainTypeFinist, TrainTypeSapsan:
		return true
	}
	return false
}

// IsSapsan reports whether the train carries the extra Sapsan
// maintenance sub-cycles (ТО-L, ТО-N, IS inspection stages)
func (t *Train) IsSapsan() bool {
	return t.Type == TrainTypeSapsan
}
