package analytics

import (
	"testing"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Depot{}, &models.Train{}, &models.DailyRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return NewService(database.NewGormDBFromDB(db), &config.DefaultConfig().Thresholds), db
}

func seedTrain(t *testing.T, db *gorm.DB, name string, active bool) *models.Train {
	t.Helper()

	depot := &models.Depot{Name: "Депо " + name}
	if err := db.Create(depot).Error; err != nil {
		t.Fatal(err)
	}
	train := &models.Train{Name: name, Type: models.TrainTypeLastochka, DepotID: depot.ID, IsActive: active}
	if err := db.Create(train).Error; err != nil {
		t.Fatal(err)
	}
	return train
}

func addRecord(t *testing.T, db *gorm.DB, trainID uint, date time.Time, daily *int, rec func(*models.DailyRecord)) {
	t.Helper()

	r := &models.DailyRecord{TrainID: trainID, RecordDate: models.DateOnly(date), DailyMileage: daily}
	if rec != nil {
		rec(r)
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatal(err)
	}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestGetTrainStatistics(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-001", true)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addRecord(t, db, train.ID, base, intPtr(400), nil)
	addRecord(t, db, train.ID, base.AddDate(0, 0, 1), intPtr(0), nil)
	addRecord(t, db, train.ID, base.AddDate(0, 0, 2), intPtr(600), nil)

	stats, err := svc.GetTrainStatistics(train.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d", stats.TotalRecords)
	}
	if stats.TotalMileage != 1000 {
		t.Errorf("TotalMileage = %d", stats.TotalMileage)
	}
	if stats.AvgDailyMileage != 333.33 {
		t.Errorf("AvgDailyMileage = %v", stats.AvgDailyMileage)
	}
	if stats.MaxDailyMileage != 600 || stats.MinDailyMileage != 0 {
		t.Errorf("max/min = %d/%d", stats.MaxDailyMileage, stats.MinDailyMileage)
	}
	// idle days do not count as working
	if stats.WorkingDays != 2 {
		t.Errorf("WorkingDays = %d", stats.WorkingDays)
	}
	if stats.EfficiencyRatio != 0.667 {
		t.Errorf("EfficiencyRatio = %v", stats.EfficiencyRatio)
	}
	if stats.LastRecordDate == nil || !stats.LastRecordDate.Equal(base.AddDate(0, 0, 2)) {
		t.Errorf("LastRecordDate = %v", stats.LastRecordDate)
	}
}

func TestGetTrainStatisticsNoRecords(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-002", true)

	stats, err := svc.GetTrainStatistics(train.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalRecords != 0 || stats.LastRecordDate != nil {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetDepotStatistics(t *testing.T) {
	svc, db := newTestService(t)
	trainA := seedTrain(t, db, "Ласточка-001", true)

	trainB := &models.Train{Name: "Ласточка-002", Type: models.TrainTypeLastochka, DepotID: trainA.DepotID, IsActive: false}
	if err := db.Create(trainB).Error; err != nil {
		t.Fatal(err)
	}

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	addRecord(t, db, trainA.ID, yesterday, intPtr(500), nil)
	addRecord(t, db, trainB.ID, yesterday, intPtr(300), nil)

	stats, err := svc.GetDepotStatistics(trainA.DepotID, 7)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalTrains != 2 || stats.ActiveTrains != 1 {
		t.Errorf("trains = %d/%d", stats.TotalTrains, stats.ActiveTrains)
	}
	if stats.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d", stats.TotalRecords)
	}
	if stats.TotalMileage != 800 {
		t.Errorf("TotalMileage = %d", stats.TotalMileage)
	}
	if stats.AvgDailyMileage != 400 {
		t.Errorf("AvgDailyMileage = %v", stats.AvgDailyMileage)
	}
	if stats.PeriodDays != 7 {
		t.Errorf("PeriodDays = %d", stats.PeriodDays)
	}
}

func TestAnalyzeMileagePatterns(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-001", true)

	now := time.Now().UTC()
	addRecord(t, db, train.ID, now.AddDate(0, 0, -3), intPtr(400), nil)
	addRecord(t, db, train.ID, now.AddDate(0, 0, -2), intPtr(500), nil)
	addRecord(t, db, train.ID, now.AddDate(0, 0, -1), intPtr(600), nil)

	patterns, err := svc.AnalyzeMileagePatterns(train.ID, 7)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if patterns.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d", patterns.TotalRecords)
	}
	if patterns.AvgDailyMileage != 500 {
		t.Errorf("AvgDailyMileage = %v", patterns.AvgDailyMileage)
	}
	if patterns.MaxDailyMileage != 600 || patterns.MinDailyMileage != 400 {
		t.Errorf("max/min = %d/%d", patterns.MaxDailyMileage, patterns.MinDailyMileage)
	}
	if len(patterns.WeekdayAverages) != 3 {
		t.Errorf("WeekdayAverages = %v", patterns.WeekdayAverages)
	}
}

func TestAnalyzeMileagePatternsNoRecords(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-001", true)

	if _, err := svc.AnalyzeMileagePatterns(train.ID, 7); err == nil {
		t.Error("expected error for a train with no records in the window")
	}
}

func TestGenerateAlerts(t *testing.T) {
	svc, db := newTestService(t)
	critical := seedTrain(t, db, "Ласточка-001", true)
	warning := seedTrain(t, db, "Финист-002", true)
	mileage := seedTrain(t, db, "Ласточка-003", true)
	pinned := seedTrain(t, db, "Ласточка-004", true)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	addRecord(t, db, critical.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(60)
	})
	addRecord(t, db, warning.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(50)
	})
	addRecord(t, db, mileage.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.MileageSinceTO = int64Ptr(24000)
	})
	addRecord(t, db, pinned.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.ManualIndicatorTrain = true
	})

	alerts, err := svc.GenerateAlerts(date, true)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(alerts) != 4 {
		t.Fatalf("alerts = %d, want 4", len(alerts))
	}

	byType := make(map[string]Alert)
	for _, a := range alerts {
		byType[a.Type] = a
	}
	if a, ok := byType["critical_days"]; !ok || a.Priority != "high" || a.TrainName != "Ласточка-001" {
		t.Errorf("critical_days alert = %+v", a)
	}
	if a, ok := byType["warning_days"]; !ok || a.Priority != "medium" {
		t.Errorf("warning_days alert = %+v", a)
	}
	if a, ok := byType["critical_mileage"]; !ok || a.MileageSinceTO == nil || *a.MileageSinceTO != 24000 {
		t.Errorf("critical_mileage alert = %+v", a)
	}
	if _, ok := byType["manual"]; !ok {
		t.Error("manual alert missing")
	}
}

func TestGenerateAlertsCache(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-001", true)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	addRecord(t, db, train.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(60)
	})

	alerts, err := svc.GenerateAlerts(date, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d", len(alerts))
	}

	other := seedTrain(t, db, "Ласточка-002", true)
	addRecord(t, db, other.ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(70)
	})

	// cached result hides the new record until forced
	alerts, err = svc.GenerateAlerts(date, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Errorf("cached alerts = %d, want 1", len(alerts))
	}

	alerts, err = svc.GenerateAlerts(date, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Errorf("forced alerts = %d, want 2", len(alerts))
	}
}

func TestGenerateAlertsCachePerDate(t *testing.T) {
	svc, db := newTestService(t)
	train := seedTrain(t, db, "Ласточка-001", true)

	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	addRecord(t, db, train.ID, today, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(60)
	})
	addRecord(t, db, train.ID, yesterday, intPtr(100), nil)

	alerts, err := svc.GenerateAlerts(today, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts for today = %d, want 1", len(alerts))
	}

	// a fresh cache for one date must not answer for another
	alerts, err = svc.GenerateAlerts(yesterday, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts for yesterday = %d, want 0", len(alerts))
	}
}

func TestGetMaintenanceSummary(t *testing.T) {
	svc, db := newTestService(t)
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	names := []string{"Ласточка-001", "Ласточка-002", "Ласточка-003", "Ласточка-004"}
	trains := make([]*models.Train, len(names))
	for i, name := range names {
		trains[i] = seedTrain(t, db, name, true)
	}

	planned := date.AddDate(0, 0, 3)
	addRecord(t, db, trains[0].ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(60)
		r.MileageSinceTO = int64Ptr(26000)
		r.PlannedTODate = &planned
	})
	addRecord(t, db, trains[1].ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(50)
		r.MileageSinceTO = int64Ptr(24000)
	})
	addRecord(t, db, trains[2].ID, date, intPtr(100), func(r *models.DailyRecord) {
		r.DaysSinceTO = intPtr(10)
		r.MileageSinceTO = int64Ptr(5000)
	})
	addRecord(t, db, trains[3].ID, date, intPtr(100), nil) // no derived data

	summary, err := svc.GetMaintenanceSummary(date)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d", summary.TotalRecords)
	}

	days := summary.DaysStats
	if days.Critical != 1 || days.Warning != 1 || days.Normal != 1 || days.NoData != 1 {
		t.Errorf("DaysStats = %+v", days)
	}
	mileage := summary.MileageStats
	if mileage.Critical != 1 || mileage.Warning != 1 || mileage.Normal != 1 || mileage.NoData != 1 {
		t.Errorf("MileageStats = %+v", mileage)
	}

	if len(summary.Upcoming) != 1 {
		t.Fatalf("Upcoming = %d, want 1", len(summary.Upcoming))
	}
	if summary.Upcoming[0].TrainID != trains[0].ID {
		t.Errorf("Upcoming train = %d", summary.Upcoming[0].TrainID)
	}
}
