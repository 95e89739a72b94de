package repository

import (
	"context"

	"gorm.io/gorm"

	"fleetguard/internal/model"
)

type MetricRepository struct {
	db *gorm.DB
}

func NewMetricRepository(db *gorm.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

func (r *MetricRepository) CreateBatch(ctx context.Context, metrics []model.InspectionMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&metrics).Error
	})
}

// List returns metric rows oldest first so later rows win when folding "latest" values.
func (r *MetricRepository) List(ctx context.Context, filter model.MetricFilter) ([]model.InspectionMetric, error) {
	query := r.db.WithContext(ctx).Model(&model.InspectionMetric{})

	if filter.Type != "" {
		query = query.Where("metric_type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("recorded_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("recorded_at <= ?", *filter.To)
	}

	var metrics []model.InspectionMetric
	if err := query.Order("recorded_at ASC").Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}
