package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smiglya/Project.vsm/internal/analytics"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
)

// DepotHandler handles depot-related requests
type DepotHandler struct {
	db        *database.GormDB
	analytics *analytics.Service
}

// NewDepotHandler creates a new depot handler
func NewDepotHandler(db *database.GormDB, analyticsService *analytics.Service) *DepotHandler {
	return &DepotHandler{db: db, analytics: analyticsService}
}

type depotRequest struct {
	Name        string `json:"name" binding:"required"`
	Location    string `json:"location"`
	ContactInfo string `json:"contact_info"`
}

// GetDepots returns depots with optional name search and pagination
func (h *DepotHandler) GetDepots(c *gin.Context) {
	search := c.Query("search")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	depots, total, err := h.db.GetDepots(search, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"depots": depots,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetDepot returns a single depot by ID
func (h *DepotHandler) GetDepot(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot id"})
		return
	}

	depot, err := h.db.GetDepotByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, depot)
}

// CreateDepot creates a new depot
func (h *DepotHandler) CreateDepot(c *gin.Context) {
	var req depotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	depot := &models.Depot{
		Name:        req.Name,
		Location:    req.Location,
		ContactInfo: req.ContactInfo,
	}
	if err := h.db.CreateDepot(depot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, depot)
}

// UpdateDepot updates an existing depot
func (h *DepotHandler) UpdateDepot(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot id"})
		return
	}

	depot, err := h.db.GetDepotByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req depotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	depot.Name = req.Name
	depot.Location = req.Location
	depot.ContactInfo = req.ContactInfo
	if err := h.db.SaveDepot(depot); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, depot)
}

// DeleteDepot deletes a depot and, through the cascade, its trains
func (h *DepotHandler) DeleteDepot(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot id"})
		return
	}

	if _, err := h.db.GetDepotByID(id); err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.DeleteDepot(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "depot deleted"})
}

// GetDepotTrains returns the trains assigned to a depot
func (h *DepotHandler) GetDepotTrains(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot id"})
		return
	}

	trains, err := h.db.GetDepotTrains(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trains": trains,
		"count":  len(trains),
	})
}

// GetDepotStatistics returns fleet metrics for a depot over a trailing period
func (h *DepotHandler) GetDepotStatistics(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depot id"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := h.analytics.GetDepotStatistics(id, days)
	if err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "depot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// parseUintParam reads a positive integer path parameter
func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
