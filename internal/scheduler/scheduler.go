package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smiglya/Project.vsm/internal/analytics"
	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/feed"
	"github.com/smiglya/Project.vsm/internal/models"
)

// Scheduler runs the recurring maintenance jobs: the daily mileage sync,
// the nightly recalculation sweep and the morning alert scan
type Scheduler struct {
	cron       *cron.Cron
	db         *database.GormDB
	calculator *calc.Calculator
	analytics  *analytics.Service
	feedClient *feed.Client
	config     *config.Config
	isRunning  bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db *database.GormDB, calculator *calc.Calculator, analyticsService *analytics.Service, feedClient *feed.Client, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		db:         db,
		calculator: calculator,
		analytics:  analyticsService,
		feedClient: feedClient,
		config:     cfg,
	}
}

// Start registers the cron jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if s.config.Jobs.DailySyncEnabled {
		syncSpec := s.parseDailyRunTime(s.config.Jobs.DailySyncTime, "05:00")
		_, err := s.cron.AddFunc(syncSpec, func() {
			log.Println("Scheduler: Starting daily mileage sync...")
			if err := s.RunDailySync(); err != nil {
				log.Printf("Scheduler: Daily mileage sync failed: %v", err)
			} else {
				log.Println("Scheduler: Daily mileage sync completed successfully")
			}
		})
		if err != nil {
			return err
		}
		log.Printf("Scheduler: Daily sync scheduled at %s (cron: %s)", s.config.Jobs.DailySyncTime, syncSpec)
	} else {
		log.Println("Scheduler: Daily sync is disabled in configuration")
	}

	recalcSpec := s.parseDailyRunTime(s.config.Jobs.NightlyRecalcTime, "02:00")
	_, err := s.cron.AddFunc(recalcSpec, func() {
		log.Println("Scheduler: Starting nightly recalculation enqueue...")
		if err := s.RunNightlyRecalc(); err != nil {
			log.Printf("Scheduler: Nightly recalculation enqueue failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	alertSpec := s.parseDailyRunTime(s.config.Jobs.AlertScanTime, "06:00")
	_, err = s.cron.AddFunc(alertSpec, func() {
		log.Println("Scheduler: Starting alert scan...")
		alerts, err := s.analytics.GenerateAlerts(time.Now(), true)
		if err != nil {
			log.Printf("Scheduler: Alert scan failed: %v", err)
			return
		}
		log.Printf("Scheduler: Alert scan completed, %d alerts", len(alerts))
	})
	if err != nil {
		return err
	}

	// Hourly sweep of expired average-mileage cache entries
	_, err = s.cron.AddFunc("0 * * * *", func() {
		removed := s.calculator.SweepCache()
		if removed > 0 {
			log.Printf("Scheduler: Swept %d expired cache entries", removed)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Println("Scheduler: Started")

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// RunDailySync pulls today's readings from the external feed for every
// active train that is not on manual mileage entry. Trains that already
// have a record for today are skipped.
func (s *Scheduler) RunDailySync() error {
	trains, err := s.db.GetAutoFeedTrains()
	if err != nil {
		return err
	}

	targetDate := models.DateOnly(time.Now())
	log.Printf("Scheduler: Found %d trains to sync for %s", len(trains), targetDate.Format("2006-01-02"))

	successCount := 0
	skippedCount := 0
	errorCount := 0

	ctx := context.Background()
	for i := range trains {
		train := &trains[i]

		exists, err := s.db.RecordExists(train.ID, targetDate)
		if err != nil {
			log.Printf("Scheduler: Failed to check record for train %s: %v", train.Name, err)
			errorCount++
			continue
		}
		if exists {
			skippedCount++
			continue
		}

		if err := s.syncTrain(ctx, train, targetDate); err != nil {
			if errors.Is(err, feed.ErrNotFound) {
				log.Printf("Scheduler: No feed data for train %s on %s", train.Name, targetDate.Format("2006-01-02"))
				skippedCount++
				continue
			}
			log.Printf("Scheduler: Failed to sync train %s: %v", train.Name, err)
			errorCount++
			continue
		}
		successCount++
	}

	log.Printf("Scheduler: Daily sync completed. Success: %d, Skipped: %d, Errors: %d",
		successCount, skippedCount, errorCount)
	return nil
}

// syncTrain fetches one train's reading and stores a new daily record,
// carrying the maintenance snapshot forward from the previous record.
func (s *Scheduler) syncTrain(ctx context.Context, train *models.Train, targetDate time.Time) error {
	depotName := ""
	if train.Depot != nil {
		depotName = train.Depot.Name
	}

	data, err := s.feedClient.FetchMileage(ctx, train.Name, depotName, targetDate)
	if err != nil {
		return err
	}

	previous, err := s.db.GetPreviousRecord(train.ID, targetDate)
	if err != nil && !database.IsNotFound(err) {
		return err
	}

	daily := data.DailyMileage
	if daily < 0 {
		daily = 0
	}

	rec := &models.DailyRecord{
		TrainID:      train.ID,
		RecordDate:   targetDate,
		DailyMileage: &daily,
	}

	switch {
	case data.TotalMileage != nil:
		rec.TotalMileage = *data.TotalMileage
	case previous != nil:
		rec.TotalMileage = calc.TotalMileage(previous.TotalMileage, int64(daily))
	default:
		rec.TotalMileage = int64(daily)
	}

	if previous != nil {
		rec.LastTOMileage = previous.LastTOMileage
		rec.LastTODate = previous.LastTODate
		rec.LastTOType = previous.LastTOType
		rec.NextTOType = previous.NextTOType
		rec.LastBlockDate = previous.LastBlockDate
		rec.LastKPMeasureDate = previous.LastKPMeasureDate
		rec.InspectionCounter = previous.InspectionCounter
		rec.TOLMileage = previous.TOLMileage
		rec.TONMileage = previous.TONMileage
		rec.IS510Mileage = previous.IS510Mileage
		rec.IS520Mileage = previous.IS520Mileage
		rec.IS530Mileage = previous.IS530Mileage
	}

	if err := s.calculator.RecalculateRecord(rec, train.Type, s.db.HistorySamples); err != nil {
		return err
	}
	if err := s.db.CreateRecord(rec); err != nil {
		return err
	}
	s.calculator.InvalidateTrain(train.ID)
	return nil
}

// RunNightlyRecalc enqueues a recalculation job per active train covering
// the trailing window. The queue worker picks them up one at a time.
func (s *Scheduler) RunNightlyRecalc() error {
	trains, err := s.db.GetActiveTrains()
	if err != nil {
		return err
	}

	windowDays := s.config.Jobs.RecalcWindowDays
	if windowDays <= 0 {
		windowDays = 90
	}
	end := models.DateOnly(time.Now())
	start := end.AddDate(0, 0, -windowDays)

	enqueued := 0
	for i := range trains {
		if _, err := s.db.EnqueueRecalcJob(trains[i].ID, start, end); err != nil {
			log.Printf("Scheduler: Failed to enqueue recalculation for train %s: %v", trains[i].Name, err)
			continue
		}
		enqueued++
	}

	log.Printf("Scheduler: Enqueued %d recalculation jobs (%s .. %s)",
		enqueued, start.Format("2006-01-02"), end.Format("2006-01-02"))
	return nil
}

// RunSyncNow immediately executes the daily sync (for manual trigger)
func (s *Scheduler) RunSyncNow() error {
	log.Println("Scheduler: Manual trigger - starting daily mileage sync...")
	return s.RunDailySync()
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr, fallback string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("Scheduler: Failed to parse time '%s', using default %s", timeStr, fallback)
	fmt.Sscanf(fallback, "%d:%d", &hour, &minute)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
