package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"github.com/smiglya/Project.vsm/internal/ratelimit"
	"github.com/smiglya/Project.vsm/internal/scheduler"
)

// SystemHandler handles queue, scheduler and statistics endpoints
type SystemHandler struct {
	db        *database.GormDB
	scheduler *scheduler.Scheduler
	worker    *scheduler.QueueWorker
	limiter   *ratelimit.RateLimiter
	syncing   bool
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db *database.GormDB, sched *scheduler.Scheduler, worker *scheduler.QueueWorker, limiter *ratelimit.RateLimiter) *SystemHandler {
	return &SystemHandler{
		db:        db,
		scheduler: sched,
		worker:    worker,
		limiter:   limiter,
	}
}

// GetStats returns fleet-wide entity counts and recent activity
func (h *SystemHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})
	db := h.db.DB()

	var depotCount, trainCount, activeTrains, recordCount int64
	db.Model(&models.Depot{}).Count(&depotCount)
	db.Model(&models.Train{}).Count(&trainCount)
	db.Model(&models.Train{}).Where("is_active = ?", true).Count(&activeTrains)
	db.Model(&models.DailyRecord{}).Count(&recordCount)

	stats["depots"] = depotCount
	stats["trains"] = map[string]interface{}{
		"total":  trainCount,
		"active": activeTrains,
	}
	stats["records"] = recordCount

	// Records created in the last 24 hours
	last24h := time.Now().AddDate(0, 0, -1)
	var recentRecords int64
	db.Model(&models.DailyRecord{}).Where("created_at >= ?", last24h).Count(&recentRecords)
	stats["recent_activity"] = map[string]interface{}{
		"records_last_24h": recentRecords,
	}

	c.JSON(http.StatusOK, stats)
}

// GetQueueStats returns recalc queue statistics
func (h *SystemHandler) GetQueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetQueueStats())
}

// GetRateLimitStats returns rate limiter statistics
func (h *SystemHandler) GetRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.limiter.GetStats())
}

// TriggerSync manually starts the daily mileage sync in the background
func (h *SystemHandler) TriggerSync(c *gin.Context) {
	if h.syncing {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "sync is already in progress",
		})
		return
	}

	h.syncing = true
	go func() {
		defer func() { h.syncing = false }()
		h.scheduler.RunSyncNow()
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "daily mileage sync started",
	})
}

// GetSyncStatus reports whether a manual sync is running
func (h *SystemHandler) GetSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"is_syncing": h.syncing,
	})
}
