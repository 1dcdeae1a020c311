package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/smiglya/Project.vsm/internal/models"
)

// EnqueueRecalcJob queues a bulk-recalculation job for a train
func (gdb *GormDB) EnqueueRecalcJob(trainID uint, start, end time.Time) (*models.RecalcJob, error) {
	job := &models.RecalcJob{
		JobUID:    uuid.New().String(),
		TrainID:   trainID,
		StartDate: models.DateOnly(start),
		EndDate:   models.DateOnly(end),
		Status:    models.JobStatusPending,
	}
	if err := gdb.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// QueueStats summarizes the recalc queue by status
type QueueStats struct {
	Pending       int64 `json:"pending"`
	Processing    int64 `json:"processing"`
	Done          int64 `json:"done"`
	Failed        int64 `json:"failed"`
	PermanentFail int64 `json:"permanent_fail"`
}

// GetQueueStats counts recalc jobs per status
func (gdb *GormDB) GetQueueStats() (QueueStats, error) {
	var stats QueueStats
	counts := map[string]*int64{
		models.JobStatusPending:       &stats.Pending,
		models.JobStatusProcessing:    &stats.Processing,
		models.JobStatusDone:          &stats.Done,
		models.JobStatusFailed:        &stats.Failed,
		models.JobStatusPermanentFail: &stats.PermanentFail,
	}
	for status, dst := range counts {
		if err := gdb.db.Model(&models.RecalcJob{}).Where("status = ?", status).Count(dst).Error; err != nil {
			return stats, err
		}
	}
	return stats, nil
}
