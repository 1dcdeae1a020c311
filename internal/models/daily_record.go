package models

import "time"

// Maintenance event types (ТО-1..ТО-3, inspection stages I1..I6,
// repair stages R1..R4, Sapsan-only ТО-L/ТО-N/IS510..IS530)
var MaintenanceTypes = []string{
	"ТО-1", "ТО-2", "ТО-3",
	"I1", "I2", "I3", "I4", "I5", "I6",
	"R1", "R2", "R3", "R4",
	"ТО-L", "ТО-N",
	"IS510", "IS520", "IS530",
}

// ValidMaintenanceType reports whether t is a known maintenance event type
func ValidMaintenanceType(t string) bool {
	for _, mt := range MaintenanceTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// DailyRecord is one mileage record per train per calendar date.
// Derived fields are recomputed on every write, never patched partially.
type DailyRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TrainID    uint      `gorm:"not null;uniqueIndex:uniq_train_record_date;index:idx_train_date" json:"train_id"`
	Train      *Train    `gorm:"foreignKey:TrainID;constraint:OnDelete:CASCADE" json:"train,omitempty"`
	RecordDate time.Time `gorm:"type:date;not null;uniqueIndex:uniq_train_record_date;index:idx_train_date;index" json:"record_date"`

	TotalMileage int64 `gorm:"not null" json:"total_mileage"`
	// DailyMileage may legitimately be negative for correction entries;
	// the derived computation clamps, stored values do not.
	DailyMileage *int `json:"daily_mileage,omitempty"`

	// Snapshot of the most recent and upcoming scheduled maintenance
	LastTOMileage *int64     `json:"last_to_mileage,omitempty"`
	LastTODate    *time.Time `gorm:"type:date;index" json:"last_to_date,omitempty"`
	LastTOType    *string    `gorm:"type:varchar(10)" json:"last_to_type,omitempty"`
	NextTOType    *string    `gorm:"type:varchar(10)" json:"next_to_type,omitempty"`

	// Independent fixed-interval inspection cycles
	LastBlockDate     *time.Time `gorm:"type:date" json:"last_block_date,omitempty"`
	LastKPMeasureDate *time.Time `gorm:"type:date" json:"last_kp_measure_date,omitempty"`

	InspectionCounter int `gorm:"default:0" json:"inspection_counter"`

	// Sapsan-only maintenance sub-cycles
	TOLMileage   *int64 `json:"to_l_mileage,omitempty"`
	TONMileage   *int64 `json:"to_n_mileage,omitempty"`
	IS510Mileage *int64 `json:"is510_mileage,omitempty"`
	IS520Mileage *int64 `json:"is520_mileage,omitempty"`
	IS530Mileage *int64 `json:"is530_mileage,omitempty"`

	// Derived fields, persisted for query efficiency
	MileageSinceTO        *int64     `json:"mileage_since_to,omitempty"`
	MileageToTO           *int64     `json:"mileage_to_to,omitempty"`
	DaysSinceTO           *int       `gorm:"index" json:"days_since_to,omitempty"`
	AvgMileage            *float64   `json:"avg_mileage,omitempty"`
	PlannedTODate         *time.Time `gorm:"type:date;index" json:"planned_to_date,omitempty"`
	NextBlockDate         *time.Time `gorm:"type:date" json:"next_block_date,omitempty"`
	NextKPDate            *time.Time `gorm:"type:date" json:"next_kp_date,omitempty"`
	IndicatorColor        *string    `gorm:"type:varchar(20)" json:"indicator_color,omitempty"`
	MileageIndicatorColor *string    `gorm:"type:varchar(20)" json:"mileage_indicator_color,omitempty"`

	// Manual override flags pinning a record under "needs attention"
	ManualIndicatorTrain  bool `gorm:"default:false;index" json:"manual_indicator_train"`
	ManualIndicatorNextTO bool `gorm:"default:false" json:"manual_indicator_next_to"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DailyRecord) TableName() string {
	return "daily_records"
}

// DateOnly truncates a timestamp to its calendar date in UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
