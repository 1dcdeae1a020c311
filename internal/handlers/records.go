package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smiglya/Project.vsm/internal/analytics"
	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/excel"
	"github.com/smiglya/Project.vsm/internal/models"
	"github.com/smiglya/Project.vsm/internal/ratelimit"
	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02"

// RecordHandler handles daily record requests
type RecordHandler struct {
	db           *database.GormDB
	calculator   *calc.Calculator
	analytics    *analytics.Service
	excelService *excel.Service
	limiter      *ratelimit.RateLimiter
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(db *database.GormDB, calculator *calc.Calculator, analyticsService *analytics.Service, excelService *excel.Service, limiter *ratelimit.RateLimiter) *RecordHandler {
	return &RecordHandler{
		db:           db,
		calculator:   calculator,
		analytics:    analyticsService,
		excelService: excelService,
		limiter:      limiter,
	}
}

type recordRequest struct {
	TrainID           uint    `json:"train_id" binding:"required"`
	RecordDate        string  `json:"record_date" binding:"required"`
	TotalMileage      *int64  `json:"total_mileage" binding:"required"`
	DailyMileage      *int    `json:"daily_mileage"`
	LastTOMileage     *int64  `json:"last_to_mileage"`
	LastTODate        *string `json:"last_to_date"`
	LastTOType        *string `json:"last_to_type"`
	NextTOType        *string `json:"next_to_type"`
	LastBlockDate     *string `json:"last_block_date"`
	LastKPMeasureDate *string `json:"last_kp_measure_date"`
	InspectionCounter *int    `json:"inspection_counter"`
	TOLMileage        *int64  `json:"to_l_mileage"`
	TONMileage        *int64  `json:"to_n_mileage"`
	IS510Mileage      *int64  `json:"is510_mileage"`
	IS520Mileage      *int64  `json:"is520_mileage"`
	IS530Mileage      *int64  `json:"is530_mileage"`
	ManualTrain       *bool   `json:"manual_indicator_train"`
	ManualNextTO      *bool   `json:"manual_indicator_next_to"`
}

// GetRecords returns records matching the query filters, paginated
func (h *RecordHandler) GetRecords(c *gin.Context) {
	filters, err := h.parseRecordFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.db.GetRecordsFiltered(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetRecord returns a single record. For Sapsan trains the extra
// maintenance sub-cycle metrics are included.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	record, err := h.db.GetRecordByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"record": record}
	if record.Train != nil {
		if metrics := h.calculator.SapsanRecordMetrics(record, record.Train.Type); metrics != nil {
			resp["sapsan_metrics"] = metrics
		}
	}

	c.JSON(http.StatusOK, resp)
}

// CreateRecord creates a daily record and computes its derived fields
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	train, err := h.db.GetTrainByID(req.TrainID)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "train not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	recordDate, err := h.parseRecordDate(req.RecordDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exists, err := h.db.RecordExists(train.ID, recordDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("record for train %q on %s already exists", train.Name, recordDate.Format(dateLayout)),
		})
		return
	}

	record := &models.DailyRecord{TrainID: train.ID, RecordDate: recordDate}
	if err := h.applyRecordFields(record, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.calculator.RecalculateRecord(record, train.Type, h.db.HistorySamples); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.CreateRecord(record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.calculator.InvalidateTrain(train.ID)

	c.JSON(http.StatusCreated, record)
}

// UpdateRecord updates a record and recomputes its derived fields
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	record, err := h.db.GetRecordByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TrainID != record.TrainID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record cannot be moved to another train"})
		return
	}

	train, err := h.db.GetTrainByID(record.TrainID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	recordDate, err := h.parseRecordDate(req.RecordDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !recordDate.Equal(record.RecordDate) {
		exists, err := h.db.RecordExists(record.TrainID, recordDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{
				"error": fmt.Sprintf("record for train %q on %s already exists", train.Name, recordDate.Format(dateLayout)),
			})
			return
		}
		record.RecordDate = recordDate
	}

	if err := h.applyRecordFields(record, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.calculator.RecalculateRecord(record, train.Type, h.db.HistorySamples); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.SaveRecord(record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.calculator.InvalidateTrain(train.ID)

	c.JSON(http.StatusOK, record)
}

// DeleteRecord deletes a record
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	record, err := h.db.GetRecordByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.DeleteRecord(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.calculator.InvalidateTrain(record.TrainID)

	c.JSON(http.StatusOK, gin.H{"message": "record deleted"})
}

// GetRecordsByIndicator returns a date's records filtered by indicator
// color. Manually pinned records are always included under red.
func (h *RecordHandler) GetRecordsByIndicator(c *gin.Context) {
	color := c.Query("color")
	switch calc.Color(color) {
	case calc.ColorGreen, calc.ColorYellow, calc.ColorRed, calc.ColorGray:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "color must be one of green, yellow, red, gray"})
		return
	}

	date := models.DateOnly(time.Now())
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = models.DateOnly(parsed)
	}

	records, err := h.db.GetRecordsByIndicator(color, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
		"color":   color,
		"date":    date.Format(dateLayout),
	})
}

// GetMaintenanceSummary returns the maintenance dashboard for a date
func (h *RecordHandler) GetMaintenanceSummary(c *gin.Context) {
	date := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	summary, err := h.analytics.GetMaintenanceSummary(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetAlerts returns maintenance alerts for today's records
func (h *RecordHandler) GetAlerts(c *gin.Context) {
	force := c.Query("force") == "true"

	alerts, err := h.analytics.GenerateAlerts(time.Now(), force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

type bulkRecalcRequest struct {
	TrainID   *uint  `json:"train_id"`
	DepotID   *uint  `json:"depot_id"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// BulkRecalculate queues recalculation jobs for one train, one depot's
// trains, or the whole active fleet. Rate limited.
func (h *RecordHandler) BulkRecalculate(c *gin.Context) {
	if !h.limiter.AllowRequest() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return
	}

	var req bulkRecalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, expected YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date is before start_date"})
		return
	}

	var trains []models.Train
	switch {
	case req.TrainID != nil:
		train, err := h.db.GetTrainByID(*req.TrainID)
		if err != nil {
			if database.IsNotFound(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "train not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		trains = []models.Train{*train}
	case req.DepotID != nil:
		trains, err = h.db.GetDepotTrains(*req.DepotID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	default:
		trains, err = h.db.GetActiveTrains()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	jobUIDs := make([]string, 0, len(trains))
	for i := range trains {
		job, err := h.db.EnqueueRecalcJob(trains[i].ID, start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		jobUIDs = append(jobUIDs, job.JobUID)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "recalculation queued",
		"jobs":     jobUIDs,
		"enqueued": len(jobUIDs),
	})
}

// ExportRecords streams the filtered records as an xlsx workbook
func (h *RecordHandler) ExportRecords(c *gin.Context) {
	filters, err := h.parseRecordFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filters.Limit == 0 || filters.Limit > 100000 {
		filters.Limit = 100000
	}

	page, err := h.db.GetRecordsFiltered(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f, err := h.excelService.Export(page.Records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	writeWorkbook(c, f, "vsm_data.xlsx")
}

// ImportRecords ingests records from an uploaded xlsx workbook.
// Rate limited; bad rows are reported individually in the response.
func (h *RecordHandler) ImportRecords(c *gin.Context) {
	if !h.limiter.AllowRequest() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	sheetName := c.PostForm("sheet_name")
	skipRows, _ := strconv.Atoi(c.DefaultPostForm("skip_rows", "0"))
	updateExisting := c.PostForm("update_existing") == "true"

	result, err := h.excelService.Import(file, sheetName, skipRows, updateExisting)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ImportTemplate streams an empty import template workbook
func (h *RecordHandler) ImportTemplate(c *gin.Context) {
	f, err := h.excelService.Template()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	writeWorkbook(c, f, "vsm_template.xlsx")
}

// applyRecordFields copies validated request fields onto the record
func (h *RecordHandler) applyRecordFields(record *models.DailyRecord, req *recordRequest) error {
	if *req.TotalMileage < 0 {
		return fmt.Errorf("total_mileage must not be negative")
	}
	record.TotalMileage = *req.TotalMileage
	record.DailyMileage = req.DailyMileage

	if req.LastTOMileage != nil && *req.LastTOMileage < 0 {
		return fmt.Errorf("last_to_mileage must not be negative")
	}
	record.LastTOMileage = req.LastTOMileage

	if req.LastTOType != nil && !models.ValidMaintenanceType(*req.LastTOType) {
		return fmt.Errorf("unknown maintenance type %q", *req.LastTOType)
	}
	record.LastTOType = req.LastTOType
	if req.NextTOType != nil && !models.ValidMaintenanceType(*req.NextTOType) {
		return fmt.Errorf("unknown maintenance type %q", *req.NextTOType)
	}
	record.NextTOType = req.NextTOType

	dates := []struct {
		name   string
		raw    *string
		target **time.Time
	}{
		{"last_to_date", req.LastTODate, &record.LastTODate},
		{"last_block_date", req.LastBlockDate, &record.LastBlockDate},
		{"last_kp_measure_date", req.LastKPMeasureDate, &record.LastKPMeasureDate},
	}
	for _, d := range dates {
		if d.raw == nil {
			*d.target = nil
			continue
		}
		parsed, err := time.Parse(dateLayout, *d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s, expected YYYY-MM-DD", d.name)
		}
		day := models.DateOnly(parsed)
		*d.target = &day
	}

	if req.InspectionCounter != nil {
		if *req.InspectionCounter < 0 {
			return fmt.Errorf("inspection_counter must not be negative")
		}
		record.InspectionCounter = *req.InspectionCounter
	}

	record.TOLMileage = req.TOLMileage
	record.TONMileage = req.TONMileage
	record.IS510Mileage = req.IS510Mileage
	record.IS520Mileage = req.IS520Mileage
	record.IS530Mileage = req.IS530Mileage

	if req.ManualTrain != nil {
		record.ManualIndicatorTrain = *req.ManualTrain
	}
	if req.ManualNextTO != nil {
		record.ManualIndicatorNextTO = *req.ManualNextTO
	}
	return nil
}

// parseRecordDate validates the record date: parseable and not in the future
func (h *RecordHandler) parseRecordDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid record_date, expected YYYY-MM-DD")
	}
	day := models.DateOnly(parsed)
	if day.After(models.DateOnly(time.Now())) {
		return time.Time{}, fmt.Errorf("record_date cannot be in the future")
	}
	return day, nil
}

// parseRecordFilters builds record filters from query parameters
func (h *RecordHandler) parseRecordFilters(c *gin.Context) (database.RecordFilters, error) {
	filters := database.RecordFilters{
		TrainType:  c.Query("train_type"),
		LastTOType: c.Query("last_to_type"),
		NextTOType: c.Query("next_to_type"),
		ManualOnly: c.Query("manual_only") == "true",
		SortBy:     c.Query("sort_by"),
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if v := c.Query("train_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filters, fmt.Errorf("invalid train_id")
		}
		trainID := uint(id)
		filters.TrainID = &trainID
	}
	if v := c.Query("depot_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filters, fmt.Errorf("invalid depot_id")
		}
		depotID := uint(id)
		filters.DepotID = &depotID
	}
	if v := c.Query("start_date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, fmt.Errorf("invalid start_date, expected YYYY-MM-DD")
		}
		day := models.DateOnly(parsed)
		filters.StartDate = &day
	}
	if v := c.Query("end_date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, fmt.Errorf("invalid end_date, expected YYYY-MM-DD")
		}
		day := models.DateOnly(parsed)
		filters.EndDate = &day
	}
	return filters, nil
}

// writeWorkbook streams an xlsx file as an attachment
func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := f.WriteTo(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
