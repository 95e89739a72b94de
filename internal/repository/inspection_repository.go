package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetguard/internal/model"
)

type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

type InspectionStats struct {
	Total        int64              `json:"total_inspections"`
	WithCritical int64              `json:"critical_inspections"`
	Vehicles     int64              `json:"vehicles_inspected"`
	Recent       []model.Inspection `json:"recent"`
}

// CreateOrGet inserts the inspection unless one already exists for its session handle,
// in which case the stored row is loaded into inspection. created reports which happened.
func (r *InspectionRepository) CreateOrGet(ctx context.Context, inspection *model.Inspection) (created bool, err error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_handle"}},
			DoNothing: true,
		}).
		Create(inspection)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var existing model.Inspection
	if err := r.db.WithContext(ctx).Where("session_handle = ?", inspection.SessionHandle).First(&existing).Error; err != nil {
		return false, err
	}
	*inspection = existing
	return false, nil
}

func (r *InspectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	var inspection model.Inspection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inspection).Error; err != nil {
		return nil, err
	}
	return &inspection, nil
}

func (r *InspectionRepository) applyFilter(query *gorm.DB, filter model.InspectionFilter) *gorm.DB {
	if filter.WorkerID != "" {
		query = query.Where("worker_id = ?", filter.WorkerID)
	}
	if filter.TruckID != "" {
		query = query.Where("truck_id = ?", filter.TruckID)
	}
	if filter.From != nil {
		query = query.Where("started_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("started_at <= ?", *filter.To)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("(worker_name ILIKE ? OR truck_id ILIKE ? OR truck_model ILIKE ?)", search, search, search)
	}
	return query
}

func (r *InspectionRepository) List(ctx context.Context, filter model.InspectionFilter) ([]model.Inspection, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&model.Inspection{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(200)
	}

	var inspections []model.Inspection
	if err := query.Order("started_at DESC").Find(&inspections).Error; err != nil {
		return nil, 0, err
	}
	return inspections, total, nil
}

func (r *InspectionRepository) SetReport(ctx context.Context, sessionHandle, filename, location string) error {
	return r.db.WithContext(ctx).
		Model(&model.Inspection{}).
		Where("session_handle = ?", sessionHandle).
		Updates(map[string]interface{}{
			"report_filename": filename,
			"report_location": location,
		}).Error
}

func (r *InspectionRepository) Stats(ctx context.Context, recent int) (*InspectionStats, error) {
	db := r.db.WithContext(ctx)
	stats := &InspectionStats{}

	if err := db.Model(&model.Inspection{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Inspection{}).Where("critical_count > 0").Count(&stats.WithCritical).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Inspection{}).Distinct("truck_id").Count(&stats.Vehicles).Error; err != nil {
		return nil, err
	}
	if err := db.Order("started_at DESC").Limit(recent).Find(&stats.Recent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
