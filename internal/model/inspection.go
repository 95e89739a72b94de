package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fleetguard/internal/inspection"
)

// InspectionItem is the stored snapshot of one finalized checklist item. Photos are not kept.
type InspectionItem struct {
	ItemID        string                `json:"item_id"`
	Name          string                `json:"name"`
	Status        inspection.Status     `json:"status"`
	Comment       string                `json:"comment"`
	PhotoCount    int                   `json:"photo_count"`
	Analysis      inspection.Analysis   `json:"analysis"`
	PhotoAnalyses []inspection.Analysis `json:"photo_analyses,omitempty"`
}

type Inspection struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	SessionHandle    string            `gorm:"type:varchar(32);not null" json:"session_handle"`
	WorkerID         string            `gorm:"type:varchar(32);not null" json:"worker_id"`
	WorkerName       string            `gorm:"type:varchar(128);not null" json:"worker_name"`
	TruckID          string            `gorm:"type:varchar(8);not null" json:"truck_id"`
	TruckModel       string            `gorm:"type:varchar(128)" json:"truck_model"`
	TruckYear        int               `json:"truck_year"`
	Locale           string            `gorm:"type:varchar(8);not null" json:"locale"`
	Items            []InspectionItem  `gorm:"type:jsonb;serializer:json;not null" json:"items"`
	OverallCondition int               `gorm:"not null" json:"overall_condition"`
	CriticalCount    int               `gorm:"not null" json:"critical_count"`
	WarningCount     int               `gorm:"not null" json:"warning_count"`
	DynamicStatus    inspection.Status `gorm:"type:varchar(16);not null" json:"dynamic_status"`
	StartedAt        time.Time         `gorm:"not null" json:"start_time"`
	EndedAt          time.Time         `gorm:"not null" json:"end_time"`
	DurationSeconds  int64             `gorm:"not null" json:"duration_seconds"`
	ReportFilename   *string           `gorm:"type:varchar(255)" json:"report_filename,omitempty"`
	ReportLocation   *string           `gorm:"type:text" json:"-"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (Inspection) TableName() string {
	return "inspections"
}

func (i *Inspection) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// NewInspection flattens a completed record into its stored row.
func NewInspection(rec inspection.Record) *Inspection {
	items := make([]InspectionItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, InspectionItem{
			ItemID:        it.Item.ID,
			Name:          it.Item.Label(rec.Locale),
			Status:        it.Status,
			Comment:       it.Comment,
			PhotoCount:    it.PhotoCount,
			Analysis:      it.Analysis,
			PhotoAnalyses: it.PhotoAnalyses,
		})
	}
	return &Inspection{
		SessionHandle:    rec.SessionHandle,
		WorkerID:         rec.Operator.ID,
		WorkerName:       rec.Operator.Name,
		TruckID:          rec.Vehicle.ID,
		TruckModel:       rec.Vehicle.Model,
		TruckYear:        rec.Vehicle.Year,
		Locale:           rec.Locale,
		Items:            items,
		OverallCondition: rec.Score,
		CriticalCount:    rec.CriticalCount,
		WarningCount:     rec.WarningCount,
		DynamicStatus:    rec.OverallStatus(),
		StartedAt:        rec.StartedAt,
		EndedAt:          rec.EndedAt,
		DurationSeconds:  rec.DurationSeconds,
	}
}
