package database

import (
	"github.com/smiglya/Project.vsm/internal/models"
)

// TrainFilters describes filtering, ordering and pagination for train listings
type TrainFilters struct {
	Type            string
	DepotID         *uint
	IsActive        *bool
	IsManualMileage *bool
	Search          string
	SortBy          string
	Limit           int
	Offset          int
}

// CreateTrain inserts a new train
func (gdb *GormDB) CreateTrain(t *models.Train) error {
	return gdb.db.Create(t).Error
}

// GetTrainByID retrieves a train with its depot preloaded
func (gdb *GormDB) GetTrainByID(id uint) (*models.Train, error) {
	var train models.Train
	err := gdb.db.Preload("Depot").First(&train, id).Error
	if err != nil {
		return nil, err
	}
	return &train, nil
}

// GetTrainByName retrieves a train by its unique name
func (gdb *GormDB) GetTrainByName(name string) (*models.Train, error) {
	var train models.Train
	err := gdb.db.Preload("Depot").Where("name = ?", name).First(&train).Error
	if err != nil {
		return nil, err
	}
	return &train, nil
}

// GetTrains retrieves trains matching the filters
func (gdb *GormDB) GetTrains(filters TrainFilters) ([]models.Train, int64, error) {
	var trains []models.Train
	var total int64

	query := gdb.db.Model(&models.Train{}).Preload("Depot")

	if filters.Type != "" {
		query = query.Where("type = ?", filters.Type)
	}
	if filters.DepotID != nil {
		query = query.Where("depot_id = ?", *filters.DepotID)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.IsManualMileage != nil {
		query = query.Where("is_manual_mileage = ?", *filters.IsManualMileage)
	}
	if filters.Search != "" {
		query = query.Where("name LIKE ?", "%"+filters.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderClause string
	switch filters.SortBy {
	case "type":
		orderClause = "type ASC, name ASC"
	case "created_at":
		orderClause = "created_at DESC"
	default:
		orderClause = "name ASC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	err := query.Order(orderClause).Limit(limit).Offset(filters.Offset).Find(&trains).Error
	return trains, total, err
}

// SaveTrain updates an existing train
func (gdb *GormDB) SaveTrain(t *models.Train) error {
	return gdb.db.Save(t).Error
}

// DeleteTrain removes a train and cascades to its records
func (gdb *GormDB) DeleteTrain(id uint) error {
	return gdb.db.Delete(&models.Train{}, id).Error
}

// GetActiveTrains retrieves all active trains with depots preloaded
func (gdb *GormDB) GetActiveTrains() ([]models.Train, error) {
	var trains []models.Train
	err := gdb.db.Preload("Depot").Where("is_active = ?", true).Order("name ASC").Find(&trains).Error
	return trains, err
}

// GetAutoFeedTrains retrieves active trains whose mileage arrives from the
// external feed rather than manual entry
func (gdb *GormDB) GetAutoFeedTrains() ([]models.Train, error) {
	var trains []models.Train
	err := gdb.db.Preload("Depot").
		Where("is_active = ? AND is_manual_mileage = ?", true, false).
		Order("name ASC").Find(&trains).Error
	return trains, err
}
