package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MetricType string

const (
	MetricInspectionTime       MetricType = "inspection_time"
	MetricWeeklyInspections    MetricType = "weekly_inspections"
	MetricIssueDistribution    MetricType = "issue_distribution"
	MetricFleetCondition       MetricType = "fleet_condition"
	MetricInspectorPerformance MetricType = "inspector_performance"
)

type MetricPeriod string

const (
	MetricPeriodDaily  MetricPeriod = "daily"
	MetricPeriodWeekly MetricPeriod = "weekly"
)

// MetricPayload carries the fields of every metric type; each type fills its own subset.
type MetricPayload struct {
	WorkerID  string     `json:"worker_id,omitempty"`
	TruckID   string     `json:"truck_id,omitempty"`
	Duration  int64      `json:"duration,omitempty"`
	Count     int        `json:"count,omitempty"`
	WeekStart *time.Time `json:"week_start,omitempty"`
	Critical  int        `json:"critical,omitempty"`
	Warning   int        `json:"warning,omitempty"`
	OK        int        `json:"ok,omitempty"`
	Condition int        `json:"condition,omitempty"`
	Score     int        `json:"score,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type InspectionMetric struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	InspectionID uuid.UUID     `gorm:"type:uuid;not null" json:"inspection_id"`
	Type         MetricType    `gorm:"column:metric_type;type:varchar(32);not null" json:"metric_type"`
	Period       MetricPeriod  `gorm:"column:calculation_period;type:varchar(16);not null" json:"calculation_period"`
	Value        MetricPayload `gorm:"column:metric_value;type:jsonb;serializer:json;not null" json:"metric_value"`
	RecordedAt   time.Time     `gorm:"not null" json:"recorded_at"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (InspectionMetric) TableName() string {
	return "inspection_metrics"
}

func (m *InspectionMetric) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
