package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smiglya/Project.vsm/internal/analytics"
	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"github.com/smiglya/Project.vsm/internal/search"
)

// TrainHandler handles train-related requests
type TrainHandler struct {
	db           *database.GormDB
	calculator   *calc.Calculator
	analytics    *analytics.Service
	searchClient *search.SearchClient
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(db *database.GormDB, calculator *calc.Calculator, analyticsService *analytics.Service, searchClient *search.SearchClient) *TrainHandler {
	return &TrainHandler{
		db:           db,
		calculator:   calculator,
		analytics:    analyticsService,
		searchClient: searchClient,
	}
}

type trainRequest struct {
	Name            string `json:"name" binding:"required"`
	Type            string `json:"type" binding:"required"`
	DepotID         uint   `json:"depot_id" binding:"required"`
	IsManualMileage *bool  `json:"is_manual_mileage"`
	IsActive        *bool  `json:"is_active"`
}

// GetTrains returns trains matching the query filters
func (h *TrainHandler) GetTrains(c *gin.Context) {
	filters := database.TrainFilters{
		Type:   c.Query("type"),
		Search: c.Query("search"),
		SortBy: c.Query("sort_by"),
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if v := c.Query("depot_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot_id"})
			return
		}
		depotID := uint(id)
		filters.DepotID = &depotID
	}
	if v := c.Query("is_active"); v != "" {
		active := v == "true" || v == "1"
		filters.IsActive = &active
	}
	if v := c.Query("is_manual_mileage"); v != "" {
		manual := v == "true" || v == "1"
		filters.IsManualMileage = &manual
	}

	trains, total, err := h.db.GetTrains(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trains": trains,
		"total":  total,
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetTrain returns a single train by ID
func (h *TrainHandler) GetTrain(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, train)
}

// CreateTrain creates a new train
func (h *TrainHandler) CreateTrain(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown train type: " + req.Type})
		return
	}
	if _, err := h.db.GetDepotByID(req.DepotID); err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.db.GetTrainByName(req.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "train with this name already exists"})
		return
	} else if !database.IsNotFound(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	train := &models.Train{
		Name:     req.Name,
		Type:     req.Type,
		DepotID:  req.DepotID,
		IsActive: true,
	}
	if req.IsManualMileage != nil {
		train.IsManualMileage = *req.IsManualMileage
	}
	if req.IsActive != nil {
		train.IsActive = *req.IsActive
	}

	if err := h.db.CreateTrain(train); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.indexTrain(train)
	c.JSON(http.StatusCreated, train)
}

// UpdateTrain updates an existing train
func (h *TrainHandler) UpdateTrain(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown train type: " + req.Type})
		return
	}
	if _, err := h.db.GetDepotByID(req.DepotID); err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	train.Name = req.Name
	train.Type = req.Type
	train.DepotID = req.DepotID
	if req.IsManualMileage != nil {
		train.IsManualMileage = *req.IsManualMileage
	}
	if req.IsActive != nil {
		train.IsActive = *req.IsActive
	}

	if err := h.db.SaveTrain(train); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.indexTrain(train)
	c.JSON(http.StatusOK, train)
}

// DeleteTrain deletes a train and its records
func (h *TrainHandler) DeleteTrain(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	if err := h.db.DeleteTrain(train.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.calculator.InvalidateTrain(train.ID)
	if h.searchClient != nil {
		if err := h.searchClient.RemoveTrain(strconv.FormatUint(uint64(train.ID), 10)); err != nil {
			log.Printf("Failed to remove train %d from search index: %v", train.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "train deleted"})
}

// GetTrainStatistics returns performance metrics for a train
func (h *TrainHandler) GetTrainStatistics(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	stats, err := h.analytics.GetTrainStatistics(train.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetMaintenancePrediction forecasts when the train will need maintenance
func (h *TrainHandler) GetMaintenancePrediction(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	latest, err := h.db.GetLatestRecord(train.ID)
	if err != nil && !database.IsNotFound(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	forecast, err := h.calculator.MaintenanceForecast(train.ID, latest, time.Now(), h.db.HistorySamples)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"train_id":   train.ID,
		"train_name": train.Name,
		"forecast":   forecast,
	})
}

// GetMileagePatterns analyzes the train's daily mileage over a trailing period
func (h *TrainHandler) GetMileagePatterns(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	patterns, err := h.analytics.AnalyzeMileagePatterns(train.ID, days)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, patterns)
}

type recalcRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// RecalculateTrain queues a recalculation of the train's records over a
// date range. Returns 202 with the job UID; the queue worker does the work.
func (h *TrainHandler) RecalculateTrain(c *gin.Context) {
	train, ok := h.loadTrain(c)
	if !ok {
		return
	}

	var req recalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, expected YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date is before start_date"})
		return
	}

	job, err := h.db.EnqueueRecalcJob(train.ID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "recalculation queued",
		"job_uid": job.JobUID,
		"status":  job.Status,
	})
}

// SearchTrains performs a full-text search over the train index
func (h *TrainHandler) SearchTrains(c *gin.Context) {
	if h.searchClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	query := c.Query("q")
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	req := search.SearchRequest{
		Query:  query,
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("type"); v != "" {
		req.Filter = append(req.Filter, "type = "+strconv.Quote(v))
	}
	if v := c.Query("depot_id"); v != "" {
		req.Filter = append(req.Filter, "depot_id = "+v)
	}
	if v := c.Query("is_active"); v != "" {
		req.Filter = append(req.Filter, "is_active = "+v)
	}

	result, err := h.searchClient.AdvancedSearch(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":               result.Hits,
		"total":              result.TotalHits,
		"processing_time_ms": result.ProcessingTime,
	})
}

// ReindexTrains rebuilds the search index from the database
func (h *TrainHandler) ReindexTrains(c *gin.Context) {
	if h.searchClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	trains, _, err := h.db.GetTrains(database.TrainFilters{Limit: 10000})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.searchClient.IndexTrains(trains); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "reindex completed",
		"indexed": len(trains),
	})
}

// loadTrain resolves the :id path parameter to a train, writing the
// error response itself when the lookup fails.
func (h *TrainHandler) loadTrain(c *gin.Context) (*models.Train, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid train id"})
		return nil, false
	}

	train, err := h.db.GetTrainByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "train not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return train, true
}

// indexTrain updates the search index, logging instead of failing the request
func (h *TrainHandler) indexTrain(train *models.Train) {
	if h.searchClient == nil {
		return
	}
	if train.Depot == nil {
		if loaded, err := h.db.GetTrainByID(train.ID); err == nil {
			train = loaded
		}
	}
	if err := h.searchClient.IndexTrain(train); err != nil {
		log.Printf("Failed to index train %d in search: %v", train.ID, err)
	}
}
