package database

import (
	"errors"
	"log"
	"time"

	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/models"
	"gorm.io/gorm"
)

// RecordFilters describes filtering, ordering and pagination for record listings
type RecordFilters struct {
	TrainID    *uint
	DepotID    *uint
	TrainType  string
	StartDate  *time.Time
	EndDate    *time.Time
	LastTOType string
	NextTOType string
	ManualOnly bool
	SortBy     string
	Limit      int
	Offset     int
}

// PaginatedRecords is a page of records plus the unpaginated total
type PaginatedRecords struct {
	Records []models.DailyRecord `json:"records"`
	Total   int64                `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// CreateRecord inserts a new daily record
func (gdb *GormDB) CreateRecord(r *models.DailyRecord) error {
	return gdb.db.Create(r).Error
}

// SaveRecord updates an existing daily record
func (gdb *GormDB) SaveRecord(r *models.DailyRecord) error {
	return gdb.db.Save(r).Error
}

// GetRecordByID retrieves a record with its train and depot preloaded
func (gdb *GormDB) GetRecordByID(id uint) (*models.DailyRecord, error) {
	var record models.DailyRecord
	err := gdb.db.Preload("Train.Depot").First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordExists reports whether a record already exists for (train, date)
func (gdb *GormDB) RecordExists(trainID uint, date time.Time) (bool, error) {
	var count int64
	err := gdb.db.Model(&models.DailyRecord{}).
		Where("train_id = ? AND record_date = ?", trainID, models.DateOnly(date)).
		Count(&count).Error
	return count > 0, err
}

// GetRecordForDate retrieves the record for (train, date), if any
func (gdb *GormDB) GetRecordForDate(trainID uint, date time.Time) (*models.DailyRecord, error) {
	var record models.DailyRecord
	err := gdb.db.Where("train_id = ? AND record_date = ?", trainID, models.DateOnly(date)).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetPreviousRecord retrieves the most recent record strictly before the date
func (gdb *GormDB) GetPreviousRecord(trainID uint, before time.Time) (*models.DailyRecord, error) {
	var record models.DailyRecord
	err := gdb.db.Where("train_id = ? AND record_date < ?", trainID, models.DateOnly(before)).
		Order("record_date DESC").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetLatestRecord retrieves the most recent record for a train
func (gdb *GormDB) GetLatestRecord(trainID uint) (*models.DailyRecord, error) {
	var record models.DailyRecord
	err := gdb.db.Where("train_id = ?", trainID).
		Order("record_date DESC").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetRecordsInRange retrieves a train's records within [start, end], oldest first
func (gdb *GormDB) GetRecordsInRange(trainID uint, start, end time.Time) ([]models.DailyRecord, error) {
	var records []models.DailyRecord
	err := gdb.db.Where("train_id = ? AND record_date >= ? AND record_date <= ?",
		trainID, models.DateOnly(start), models.DateOnly(end)).
		Order("record_date ASC").Find(&records).Error
	return records, err
}

// HistorySamples returns daily mileage samples for the rolling-average
// calculation. Satisfies calc.HistoryLookup.
func (gdb *GormDB) HistorySamples(trainID uint, from, to time.Time) ([]calc.Sample, error) {
	var records []models.DailyRecord
	err := gdb.db.Select("record_date", "daily_mileage").
		Where("train_id = ? AND record_date >= ? AND record_date <= ?",
			trainID, models.DateOnly(from), models.DateOnly(to)).
		Order("record_date ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}

	samples := make([]calc.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, calc.Sample{Date: r.RecordDate, Mileage: r.DailyMileage})
	}
	return samples, nil
}

// GetRecordsFiltered retrieves a page of records matching the filters
func (gdb *GormDB) GetRecordsFiltered(filters RecordFilters) (*PaginatedRecords, error) {
	query := gdb.db.Model(&models.DailyRecord{}).
		Joins("JOIN trains ON trains.id = daily_records.train_id").
		Preload("Train.Depot")

	if filters.TrainID != nil {
		query = query.Where("daily_records.train_id = ?", *filters.TrainID)
	}
	if filters.DepotID != nil {
		query = query.Where("trains.depot_id = ?", *filters.DepotID)
	}
	if filters.TrainType != "" {
		query = query.Where("trains.type = ?", filters.TrainType)
	}
	if filters.StartDate != nil {
		query = query.Where("daily_records.record_date >= ?", models.DateOnly(*filters.StartDate))
	}
	if filters.EndDate != nil {
		query = query.Where("daily_records.record_date <= ?", models.DateOnly(*filters.EndDate))
	}
	if filters.LastTOType != "" {
		query = query.Where("daily_records.last_to_type = ?", filters.LastTOType)
	}
	if filters.NextTOType != "" {
		query = query.Where("daily_records.next_to_type = ?", filters.NextTOType)
	}
	if filters.ManualOnly {
		query = query.Where("daily_records.manual_indicator_train = ? OR daily_records.manual_indicator_next_to = ?", true, true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var orderClause string
	switch filters.SortBy {
	case "record_date_asc":
		orderClause = "daily_records.record_date ASC"
	case "total_mileage":
		orderClause = "daily_records.total_mileage DESC"
	case "daily_mileage":
		orderClause = "daily_records.daily_mileage DESC"
	case "days_since_to":
		orderClause = "CASE WHEN daily_records.days_since_to IS NULL THEN 1 ELSE 0 END, daily_records.days_since_to DESC"
	default:
		orderClause = "daily_records.record_date DESC, trains.name ASC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	var records []models.DailyRecord
	err := query.Order(orderClause).Limit(limit).Offset(filters.Offset).Find(&records).Error
	if err != nil {
		return nil, err
	}

	return &PaginatedRecords{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  filters.Offset,
	}, nil
}

// GetRecordsByIndicator retrieves records for a date whose stored day or
// mileage indicator matches the color. Records pinned by a manual flag are
// always included under red.
func (gdb *GormDB) GetRecordsByIndicator(color string, date time.Time) ([]models.DailyRecord, error) {
	var records []models.DailyRecord
	query := gdb.db.Preload("Train.Depot").
		Where("record_date = ?", models.DateOnly(date))

	if color == string(calc.ColorRed) {
		query = query.Where(
			"indicator_color = ? OR mileage_indicator_color = ? OR manual_indicator_train = ? OR manual_indicator_next_to = ?",
			color, color, true, true)
	} else {
		query = query.Where("indicator_color = ? OR mileage_indicator_color = ?", color, color)
	}

	err := query.Order("days_since_to DESC").Find(&records).Error
	return records, err
}

// GetRecordsForDate retrieves every record for a calendar date
func (gdb *GormDB) GetRecordsForDate(date time.Time) ([]models.DailyRecord, error) {
	var records []models.DailyRecord
	err := gdb.db.Preload("Train.Depot").
		Where("record_date = ?", models.DateOnly(date)).
		Find(&records).Error
	return records, err
}

// DeleteRecord removes a record
func (gdb *GormDB) DeleteRecord(id uint) error {
	return gdb.db.Delete(&models.DailyRecord{}, id).Error
}

// BulkRecalculate re-derives every record of a train within [start, end]
// and persists the results. A failed record is logged and skipped; it never
// aborts the batch. Returns the number of records updated.
func (gdb *GormDB) BulkRecalculate(calculator *calc.Calculator, train *models.Train, start, end time.Time) (int, error) {
	records, err := gdb.GetRecordsInRange(train.ID, start, end)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range records {
		rec := &records[i]
		if err := calculator.RecalculateRecord(rec, train.Type, gdb.HistorySamples); err != nil {
			log.Printf("[Recalc] train=%s date=%s calc failed: %v", train.Name, rec.RecordDate.Format("2006-01-02"), err)
			continue
		}
		if err := gdb.db.Save(rec).Error; err != nil {
			log.Printf("[Recalc] train=%s date=%s save failed: %v", train.Name, rec.RecordDate.Format("2006-01-02"), err)
			continue
		}
		updated++
	}

	return updated, nil
}

// IsNotFound reports whether err is the store's not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
