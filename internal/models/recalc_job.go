package models

import "time"

// RecalcJob is a queued bulk-recalculation work item. Bulk recompute is
// dispatched fire-and-forget; the worker drains the queue with bounded
// retries instead of blocking the API request.
type RecalcJob struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobUID      string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"job_uid"`
	TrainID     uint       `gorm:"not null;index:idx_job_train" json:"train_id"`
	StartDate   time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate     time.Time  `gorm:"type:date;not null" json:"end_date"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status" json:"status"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index:idx_job_retry" json:"next_retry_at,omitempty"`
	UpdatedRows int        `gorm:"default:0" json:"updated_rows"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (RecalcJob) TableName() string {
	return "recalc_jobs"
}

// Status constants
const (
	JobStatusPending       = "pending"
	JobStatusProcessing    = "processing"
	JobStatusDone          = "done"
	JobStatusFailed        = "failed"
	JobStatusPermanentFail = "permanent_fail" // missing train or other non-retryable failures
)

// GetNextRetryDelay calculates exponential backoff for retries
func GetNextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
