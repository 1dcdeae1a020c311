package analytics

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"gorm.io/gorm"
)

// Service computes fleet statistics and maintenance alerts
type Service struct {
	store      *database.GormDB
	db         *gorm.DB
	thresholds *config.ThresholdsConfig

	alertsMu      sync.Mutex
	cachedAlerts  []Alert
	alertsDate    time.Time
	alertsExpires time.Time
}

// NewService creates an analytics service
func NewService(store *database.GormDB, thresholds *config.ThresholdsConfig) *Service {
	return &Service{store: store, db: store.DB(), thresholds: thresholds}
}

// TrainStatistics summarizes a train's recorded mileage
type TrainStatistics struct {
	TrainID         uint       `json:"train_id"`
	TrainName       string     `json:"train_name"`
	TotalRecords    int64      `json:"total_records"`
	TotalMileage    int64      `json:"total_mileage"`
	AvgDailyMileage float64    `json:"avg_daily_mileage"`
	MaxDailyMileage int        `json:"max_daily_mileage"`
	MinDailyMileage int        `json:"min_daily_mileage"`
	WorkingDays     int64      `json:"working_days"`
	EfficiencyRatio float64    `json:"efficiency_ratio"`
	LastRecordDate  *time.Time `json:"last_record_date,omitempty"`
}

// GetTrainStatistics computes per-train performance metrics
func (s *Service) GetTrainStatistics(trainID uint) (*TrainStatistics, error) {
	var train models.Train
	if err := s.db.First(&train, trainID).Error; err != nil {
		return nil, err
	}

	stats := &TrainStatistics{TrainID: trainID, TrainName: train.Name}

	if err := s.db.Model(&models.DailyRecord{}).Where("train_id = ?", trainID).
		Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}
	if stats.TotalRecords == 0 {
		return stats, nil
	}

	var records []models.DailyRecord
	if err := s.db.Select("record_date", "daily_mileage").
		Where("train_id = ?", trainID).Order("record_date ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	first := true
	for _, r := range records {
		if r.DailyMileage == nil {
			continue
		}
		dm := *r.DailyMileage
		stats.TotalMileage += int64(dm)
		if dm > 0 {
			stats.WorkingDays++
		}
		if first {
			stats.MaxDailyMileage = dm
			stats.MinDailyMileage = dm
			first = false
			continue
		}
		if dm > stats.MaxDailyMileage {
			stats.MaxDailyMileage = dm
		}
		if dm < stats.MinDailyMileage {
			stats.MinDailyMileage = dm
		}
	}

	stats.AvgDailyMileage = round2(float64(stats.TotalMileage) / float64(stats.TotalRecords))
	stats.EfficiencyRatio = round3(float64(stats.WorkingDays) / float64(stats.TotalRecords))

	last := records[len(records)-1].RecordDate
	stats.LastRecordDate = &last

	return stats, nil
}

// DepotStatistics summarizes a depot's fleet over a trailing period
type DepotStatistics struct {
	DepotID         uint    `json:"depot_id"`
	DepotName       string  `json:"depot_name"`
	TotalTrains     int64   `json:"total_trains"`
	ActiveTrains    int64   `json:"active_trains"`
	TotalRecords    int64   `json:"total_records"`
	TotalMileage    int64   `json:"total_mileage"`
	AvgDailyMileage float64 `json:"avg_daily_mileage"`
	PeriodDays      int     `json:"period_days"`
}

// GetDepotStatistics computes per-depot fleet metrics over the last days
func (s *Service) GetDepotStatistics(depotID uint, days int) (*DepotStatistics, error) {
	var depot models.Depot
	if err := s.db.First(&depot, depotID).Error; err != nil {
		return nil, err
	}

	if days <= 0 {
		days = 30
	}
	since := models.DateOnly(time.Now()).AddDate(0, 0, -days)

	stats := &DepotStatistics{DepotID: depotID, DepotName: depot.Name, PeriodDays: days}

	if err := s.db.Model(&models.Train{}).Where("depot_id = ?", depotID).
		Count(&stats.TotalTrains).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Train{}).Where("depot_id = ? AND is_active = ?", depotID, true).
		Count(&stats.ActiveTrains).Error; err != nil {
		return nil, err
	}

	recordQuery := s.db.Model(&models.DailyRecord{}).
		Joins("JOIN trains ON trains.id = daily_records.train_id").
		Where("trains.depot_id = ? AND daily_records.record_date >= ?", depotID, since)

	if err := recordQuery.Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}
	if stats.TotalRecords == 0 {
		return stats, nil
	}

	type agg struct {
		Total int64
		Avg   float64
	}
	var a agg
	err := recordQuery.
		Select("COALESCE(SUM(daily_records.daily_mileage), 0) AS total, COALESCE(AVG(daily_records.daily_mileage), 0) AS avg").
		Scan(&a).Error
	if err != nil {
		return nil, err
	}
	stats.TotalMileage = a.Total
	stats.AvgDailyMileage = round2(a.Avg)

	return stats, nil
}

// MileagePatterns analyzes a train's daily mileage over a trailing period
type MileagePatterns struct {
	PeriodDays      int             `json:"period_days"`
	TotalRecords    int             `json:"total_records"`
	AvgDailyMileage float64         `json:"avg_daily_mileage"`
	MaxDailyMileage int             `json:"max_daily_mileage"`
	MinDailyMileage int             `json:"min_daily_mileage"`
	WeekdayAverages map[int]float64 `json:"weekday_patterns"`
}

// AnalyzeMileagePatterns computes basic statistics and day-of-week averages
func (s *Service) AnalyzeMileagePatterns(trainID uint, days int) (*MileagePatterns, error) {
	if days <= 0 {
		days = 30
	}
	end := models.DateOnly(time.Now())
	start := end.AddDate(0, 0, -days)

	var records []models.DailyRecord
	err := s.db.Select("record_date", "daily_mileage").
		Where("train_id = ? AND record_date >= ? AND record_date <= ?", trainID, start, end).
		Order("record_date ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records for train %d in the last %d days", trainID, days)
	}

	patterns := &MileagePatterns{
		PeriodDays:      days,
		TotalRecords:    len(records),
		WeekdayAverages: make(map[int]float64),
	}

	weekdaySums := make(map[int]int)
	weekdayCounts := make(map[int]int)
	var sum int

	for i, r := range records {
		dm := 0
		if r.DailyMileage != nil {
			dm = *r.DailyMileage
		}
		sum += dm
		if i == 0 {
			patterns.MaxDailyMileage = dm
			patterns.MinDailyMileage = dm
		} else {
			if dm > patterns.MaxDailyMileage {
				patterns.MaxDailyMileage = dm
			}
			if dm < patterns.MinDailyMileage {
				patterns.MinDailyMileage = dm
			}
		}
		wd := int(r.RecordDate.Weekday())
		weekdaySums[wd] += dm
		weekdayCounts[wd]++
	}

	patterns.AvgDailyMileage = round2(float64(sum) / float64(len(records)))
	for wd, total := range weekdaySums {
		patterns.WeekdayAverages[wd] = round2(float64(total) / float64(weekdayCounts[wd]))
	}

	return patterns, nil
}

// Alert flags a train needing maintenance attention
type Alert struct {
	Type           string `json:"type"` // critical_days, warning_days, critical_mileage, manual
	TrainID        uint   `json:"train_id"`
	TrainName      string `json:"train_name"`
	DepotName      string `json:"depot_name,omitempty"`
	Message        string `json:"message"`
	DaysSinceTO    *int   `json:"days_since_to,omitempty"`
	MileageSinceTO *int64 `json:"mileage_since_to,omitempty"`
	Priority       string `json:"priority"` // high, medium
}

// GenerateAlerts scans a date's records and emits maintenance alerts.
// Results are cached per date for an hour; pass force to bypass the cache.
func (s *Service) GenerateAlerts(date time.Time, force bool) ([]Alert, error) {
	day := models.DateOnly(date)

	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	if !force && s.cachedAlerts != nil && day.Equal(s.alertsDate) && time.Now().Before(s.alertsExpires) {
		return s.cachedAlerts, nil
	}

	records, err := s.store.GetRecordsForDate(day)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0)
	for _, r := range records {
		if r.Train == nil {
			continue
		}
		depotName := ""
		if r.Train.Depot != nil {
			depotName = r.Train.Depot.Name
		}

		if r.DaysSinceTO != nil {
			days := *r.DaysSinceTO
			switch {
			case days > s.thresholds.DaysMax:
				alerts = append(alerts, Alert{
					Type: "critical_days", TrainID: r.TrainID, TrainName: r.Train.Name,
					DepotName: depotName, DaysSinceTO: r.DaysSinceTO, Priority: "high",
					Message: fmt.Sprintf("critically overdue: %d days since last maintenance", days),
				})
			case days >= s.thresholds.DaysWarn:
				alerts = append(alerts, Alert{
					Type: "warning_days", TrainID: r.TrainID, TrainName: r.Train.Name,
					DepotName: depotName, DaysSinceTO: r.DaysSinceTO, Priority: "medium",
					Message: fmt.Sprintf("warning: %d days since last maintenance", days),
				})
			}
		}

		if r.MileageSinceTO != nil && *r.MileageSinceTO > s.thresholds.MileageWarn {
			alerts = append(alerts, Alert{
				Type: "critical_mileage", TrainID: r.TrainID, TrainName: r.Train.Name,
				DepotName: depotName, MileageSinceTO: r.MileageSinceTO, Priority: "high",
				Message: fmt.Sprintf("critical mileage since last maintenance: %d km", *r.MileageSinceTO),
			})
		}

		if r.ManualIndicatorTrain || r.ManualIndicatorNextTO {
			alerts = append(alerts, Alert{
				Type: "manual", TrainID: r.TrainID, TrainName: r.Train.Name,
				DepotName: depotName, Priority: "medium",
				Message: "pinned for attention by manual indicator",
			})
		}
	}

	s.cachedAlerts = alerts
	s.alertsDate = day
	s.alertsExpires = time.Now().Add(time.Hour)
	return alerts, nil
}

// SummaryBucket counts records per risk band
type SummaryBucket struct {
	Critical int64 `json:"critical"`
	Warning  int64 `json:"warning"`
	Normal   int64 `json:"normal"`
	NoData   int64 `json:"no_data"`
}

// MaintenanceSummary aggregates a date's records into risk bands plus
// the maintenance planned within the next week
type MaintenanceSummary struct {
	Date         time.Time            `json:"date"`
	TotalRecords int64                `json:"total_records"`
	DaysStats    SummaryBucket        `json:"days_since_to_stats"`
	MileageStats SummaryBucket        `json:"mileage_stats"`
	Upcoming     []models.DailyRecord `json:"upcoming_maintenance"`
}

// GetMaintenanceSummary builds the maintenance dashboard for a date
func (s *Service) GetMaintenanceSummary(date time.Time) (*MaintenanceSummary, error) {
	day := models.DateOnly(date)
	summary := &MaintenanceSummary{Date: day}

	base := func() *gorm.DB {
		return s.db.Model(&models.DailyRecord{}).Where("record_date = ?", day)
	}

	if err := base().Count(&summary.TotalRecords).Error; err != nil {
		return nil, err
	}

	daysMax := s.thresholds.DaysMax
	daysWarn := s.thresholds.DaysWarn
	if err := base().Where("days_since_to > ?", daysMax).Count(&summary.DaysStats.Critical).Error; err != nil {
		return nil, err
	}
	if err := base().Where("days_since_to >= ? AND days_since_to <= ?", daysWarn, daysMax).
		Count(&summary.DaysStats.Warning).Error; err != nil {
		return nil, err
	}
	if err := base().Where("days_since_to < ?", daysWarn).Count(&summary.DaysStats.Normal).Error; err != nil {
		return nil, err
	}
	if err := base().Where("days_since_to IS NULL").Count(&summary.DaysStats.NoData).Error; err != nil {
		return nil, err
	}

	mileageMax := s.thresholds.MileageMax
	mileageWarn := s.thresholds.MileageWarn
	if err := base().Where("mileage_since_to >= ?", mileageMax).Count(&summary.MileageStats.Critical).Error; err != nil {
		return nil, err
	}
	if err := base().Where("mileage_since_to >= ? AND mileage_since_to < ?", mileageWarn, mileageMax).
		Count(&summary.MileageStats.Warning).Error; err != nil {
		return nil, err
	}
	if err := base().Where("mileage_since_to < ?", mileageWarn).Count(&summary.MileageStats.Normal).Error; err != nil {
		return nil, err
	}
	if err := base().Where("mileage_since_to IS NULL").Count(&summary.MileageStats.NoData).Error; err != nil {
		return nil, err
	}

	weekAhead := day.AddDate(0, 0, 7)
	err := s.db.Preload("Train.Depot").
		Where("record_date = ? AND planned_to_date >= ? AND planned_to_date <= ?", day, day, weekAhead).
		Order("planned_to_date ASC").
		Find(&summary.Upcoming).Error
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
