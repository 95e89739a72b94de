package service

import (
	"context"
	"time"

	"fleetguard/internal/metrics"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
)

const recentInspections = 5

type DashboardService struct {
	inspections InspectionStore
	metrics     MetricStore
	now         func() time.Time
}

func NewDashboardService(inspections InspectionStore, metricStore MetricStore) *DashboardService {
	return &DashboardService{inspections: inspections, metrics: metricStore, now: time.Now}
}

func (s *DashboardService) Stats(ctx context.Context) (*repository.InspectionStats, error) {
	return s.inspections.Stats(ctx, recentInspections)
}

// Metrics folds the metric rows of the last weeks into the admin dashboard.
func (s *DashboardService) Metrics(ctx context.Context, weeks int) (*metrics.Dashboard, error) {
	if weeks <= 0 {
		weeks = metrics.DefaultWeeks
	}
	now := s.now()
	from := metrics.WeekStart(now).AddDate(0, 0, -7*(weeks-1))
	rows, err := s.metrics.List(ctx, model.MetricFilter{From: &from})
	if err != nil {
		return nil, err
	}
	d := metrics.Aggregate(rows, now, weeks)
	return &d, nil
}
