package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"gorm.io/gorm"
)

// QueueWorker drains recalc_jobs one at a time. Recalculation over a
// long window is too slow for a request handler, so bulk requests only
// enqueue and the worker does the actual work with bounded retries.
type QueueWorker struct {
	db           *database.GormDB
	calculator   *calc.Calculator
	stopChan     chan struct{}
	isRunning    bool
	pollInterval time.Duration
	maxAttempts  int
}

// NewQueueWorker creates a new queue worker
func NewQueueWorker(db *database.GormDB, calculator *calc.Calculator, pollInterval time.Duration, maxAttempts int) *QueueWorker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &QueueWorker{
		db:           db,
		calculator:   calculator,
		stopChan:     make(chan struct{}),
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// Start starts the queue worker
func (w *QueueWorker) Start() {
	if w.isRunning {
		log.Println("QueueWorker: Already running")
		return
	}

	w.isRunning = true
	log.Printf("QueueWorker: Started (poll_interval=%v, max_attempts=%d)", w.pollInterval, w.maxAttempts)

	go w.run()
}

// Stop stops the queue worker
func (w *QueueWorker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("QueueWorker: Stopping...")
	w.isRunning = false
	close(w.stopChan)
}

// run is the main worker loop
func (w *QueueWorker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			log.Println("QueueWorker: Stopped")
			return
		case <-ticker.C:
			w.processNext()
		}
	}
}

// processNext picks the next runnable job: pending first, then failed
// jobs whose retry time has passed.
func (w *QueueWorker) processNext() {
	var job models.RecalcJob
	now := time.Now()

	result := w.db.DB().Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		First(&job)

	if result.Error == gorm.ErrRecordNotFound {
		result = w.db.DB().Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			models.JobStatusFailed, now).
			Order("created_at ASC").
			First(&job)
	}

	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			log.Printf("QueueWorker: Error fetching next job: %v", result.Error)
		}
		return
	}

	w.processJob(&job)
}

// processJob runs a single recalculation job
func (w *QueueWorker) processJob(job *models.RecalcJob) {
	log.Printf("QueueWorker: Processing job=%s train_id=%d attempt=%d", job.JobUID, job.TrainID, job.Attempts+1)

	job.Status = models.JobStatusProcessing
	job.Attempts++
	if err := w.db.DB().Save(job).Error; err != nil {
		log.Printf("QueueWorker: Failed to update status to processing: %v", err)
		return
	}

	train, err := w.db.GetTrainByID(job.TrainID)
	if err != nil {
		if database.IsNotFound(err) {
			// Train deleted since enqueue, nothing to retry
			w.markPermanentFail(job, fmt.Sprintf("train %d not found", job.TrainID))
			return
		}
		w.handleJobError(job, err)
		return
	}

	updated, err := w.db.BulkRecalculate(w.calculator, train, job.StartDate, job.EndDate)
	if err != nil {
		w.handleJobError(job, err)
		return
	}

	w.calculator.InvalidateTrain(train.ID)

	job.Status = models.JobStatusDone
	job.LastError = ""
	job.UpdatedRows = updated
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.NextRetryAt = nil

	if err := w.db.DB().Save(job).Error; err != nil {
		log.Printf("QueueWorker: Failed to mark job as done: %v", err)
		return
	}
	log.Printf("QueueWorker: Completed job=%s train=%s updated_rows=%d", job.JobUID, train.Name, updated)
}

// handleJobError schedules a retry with exponential backoff, or marks
// the job failed for good once attempts run out.
func (w *QueueWorker) handleJobError(job *models.RecalcJob, jobErr error) {
	log.Printf("QueueWorker: Job %s failed: %v", job.JobUID, jobErr)

	if job.Attempts >= w.maxAttempts {
		log.Printf("QueueWorker: Max retries exceeded for job=%s (%d attempts)", job.JobUID, job.Attempts)
		job.Status = models.JobStatusFailed
		job.LastError = fmt.Sprintf("max retries exceeded (%d): %v", job.Attempts, jobErr)
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.NextRetryAt = nil
	} else {
		delay := models.GetNextRetryDelay(job.Attempts - 1) // -1 because we already incremented Attempts
		nextRetry := time.Now().Add(delay)
		job.Status = models.JobStatusFailed
		job.LastError = jobErr.Error()
		job.NextRetryAt = &nextRetry
		log.Printf("QueueWorker: Scheduling retry for job=%s in %v (attempt %d/%d)",
			job.JobUID, delay, job.Attempts, w.maxAttempts)
	}

	if err := w.db.DB().Save(job).Error; err != nil {
		log.Printf("QueueWorker: Failed to save retry status: %v", err)
	}
}

func (w *QueueWorker) markPermanentFail(job *models.RecalcJob, reason string) {
	log.Printf("QueueWorker: Permanent failure for job=%s: %s", job.JobUID, reason)
	job.Status = models.JobStatusPermanentFail
	job.LastError = reason
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.NextRetryAt = nil

	if err := w.db.DB().Save(job).Error; err != nil {
		log.Printf("QueueWorker: Failed to save permanent_fail status: %v", err)
	}
}

// GetQueueStats returns current queue statistics
func (w *QueueWorker) GetQueueStats() map[string]interface{} {
	stats, err := w.db.GetQueueStats()
	if err != nil {
		log.Printf("QueueWorker: Failed to count queue: %v", err)
	}

	return map[string]interface{}{
		"pending":        stats.Pending,
		"processing":     stats.Processing,
		"done":           stats.Done,
		"failed":         stats.Failed,
		"permanent_fail": stats.PermanentFail,
		"is_running":     w.isRunning,
	}
}
