package scheduler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/feed"
	"github.com/smiglya/Project.vsm/internal/models"
)

type feedResponse struct {
	TrainID      string `json:"train_id"`
	Date         string `json:"date"`
	DailyMileage int    `json:"daily_mileage"`
	TotalMileage *int64 `json:"total_mileage,omitempty"`
}

func newTestScheduler(t *testing.T, handler http.Handler) (*Scheduler, *database.GormDB) {
	t.Helper()

	gdb := newTestDB(t)
	cfg := config.DefaultConfig()
	calculator := calc.New(&cfg.Thresholds)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.Feed.BaseURL = server.URL
	cfg.Feed.APIKey = "test-key"
	cfg.Feed.MaxRetries = 0
	cfg.Feed.RetryDelaySeconds = 0

	s := NewScheduler(gdb, calculator, nil, feed.NewClient(&cfg.Feed), cfg)
	return s, gdb
}

func TestRunDailySyncCreatesRecords(t *testing.T) {
	total := int64(105480)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := feedResponse{
			TrainID:      r.URL.Query().Get("train_id"),
			Date:         r.URL.Query().Get("date"),
			DailyMileage: 480,
			TotalMileage: &total,
		}
		json.NewEncoder(w).Encode(resp)
	})

	s, gdb := newTestScheduler(t, handler)
	train := seedTrain(t, gdb, "Ласточка-001")

	if err := s.RunDailySync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	today := models.DateOnly(time.Now())
	rec, err := gdb.GetRecordForDate(train.ID, today)
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.TotalMileage != 105480 {
		t.Errorf("TotalMileage = %d", rec.TotalMileage)
	}
	if rec.DailyMileage == nil || *rec.DailyMileage != 480 {
		t.Errorf("DailyMileage = %v", rec.DailyMileage)
	}

	// running again must not duplicate today's record
	if err := s.RunDailySync(); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	var count int64
	gdb.DB().Model(&models.DailyRecord{}).Where("train_id = ?", train.ID).Count(&count)
	if count != 1 {
		t.Errorf("records = %d, want 1", count)
	}
}

func TestRunDailySyncCarriesSnapshotForward(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no total in the feed, only the daily delta
		json.NewEncoder(w).Encode(feedResponse{DailyMileage: 480})
	})

	s, gdb := newTestScheduler(t, handler)
	train := seedTrain(t, gdb, "Ласточка-001")

	yesterday := models.DateOnly(time.Now()).AddDate(0, 0, -1)
	lastTO := int64(100000)
	toDate := yesterday.AddDate(0, 0, -10)
	toType := "ТО-1"
	prev := &models.DailyRecord{
		TrainID:       train.ID,
		RecordDate:    yesterday,
		TotalMileage:  105000,
		LastTOMileage: &lastTO,
		LastTODate:    &toDate,
		LastTOType:    &toType,
	}
	if err := gdb.CreateRecord(prev); err != nil {
		t.Fatal(err)
	}

	if err := s.RunDailySync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	rec, err := gdb.GetRecordForDate(train.ID, models.DateOnly(time.Now()))
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.TotalMileage != 105480 {
		t.Errorf("TotalMileage = %d, want previous total plus delta", rec.TotalMileage)
	}
	if rec.LastTOMileage == nil || *rec.LastTOMileage != 100000 {
		t.Errorf("LastTOMileage = %v, snapshot not carried forward", rec.LastTOMileage)
	}
	if rec.LastTOType == nil || *rec.LastTOType != "ТО-1" {
		t.Errorf("LastTOType = %v", rec.LastTOType)
	}
	if rec.MileageSinceTO == nil || *rec.MileageSinceTO != 5480 {
		t.Errorf("MileageSinceTO = %v, want 5480", rec.MileageSinceTO)
	}
}

func TestRunDailySyncSkipsMissingFeedData(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	s, gdb := newTestScheduler(t, handler)
	train := seedTrain(t, gdb, "Ласточка-001")

	if err := s.RunDailySync(); err != nil {
		t.Fatalf("sync should tolerate missing feed data: %v", err)
	}

	var count int64
	gdb.DB().Model(&models.DailyRecord{}).Where("train_id = ?", train.ID).Count(&count)
	if count != 0 {
		t.Errorf("records = %d, want none", count)
	}
}

func TestRunNightlyRecalc(t *testing.T) {
	s, gdb := newTestScheduler(t, http.NotFoundHandler())
	seedTrain(t, gdb, "Ласточка-001")
	seedTrain(t, gdb, "Финист-002")

	inactive := seedTrain(t, gdb, "Ласточка-003")
	inactive.IsActive = false
	if err := gdb.SaveTrain(inactive); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNightlyRecalc(); err != nil {
		t.Fatalf("recalc: %v", err)
	}

	stats, err := gdb.GetQueueStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 2 {
		t.Errorf("pending jobs = %d, want one per active train", stats.Pending)
	}
}

func TestParseDailyRunTime(t *testing.T) {
	s := &Scheduler{}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"morning", "05:00", "0 5 * * *"},
		{"with minutes", "02:30", "30 2 * * *"},
		{"midnight", "00:00", "0 0 * * *"},
		{"invalid falls back", "banana", "0 5 * * *"},
		{"out of range falls back", "25:00", "0 5 * * *"},
		{"empty falls back", "", "0 5 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.parseDailyRunTime(tt.input, "05:00"); got != tt.expected {
				t.Errorf("parseDailyRunTime(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
