package database

import (
	"github.com/smiglya/Project.vsm/internal/models"
)

// CreateDepot inserts a new depot
func (gdb *GormDB) CreateDepot(d *models.Depot) error {
	return gdb.db.Create(d).Error
}

// GetDepotByID retrieves a depot by ID
func (gdb *GormDB) GetDepotByID(id uint) (*models.Depot, error) {
	var depot models.Depot
	err := gdb.db.First(&depot, id).Error
	if err != nil {
		return nil, err
	}
	return &depot, nil
}

// GetDepots retrieves depots with optional name search, ordered by name
func (gdb *GormDB) GetDepots(search string, limit, offset int) ([]models.Depot, int64, error) {
	var depots []models.Depot
	var total int64

	query := gdb.db.Model(&models.Depot{})
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}

	err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&depots).Error
	return depots, total, err
}

// SaveDepot updates an existing depot
func (gdb *GormDB) SaveDepot(d *models.Depot) error {
	return gdb.db.Save(d).Error
}

// DeleteDepot removes a depot and cascades to its trains and records
func (gdb *GormDB) DeleteDepot(id uint) error {
	return gdb.db.Delete(&models.Depot{}, id).Error
}

// GetDepotTrains retrieves all trains assigned to a depot
func (gdb *GormDB) GetDepotTrains(depotID uint) ([]models.Train, error) {
	var trains []models.Train
	err := gdb.db.Where("depot_id = ?", depotID).Order("name ASC").Find(&trains).Error
	return trains, err
}
