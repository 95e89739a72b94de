package model

import "time"

type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusInactive    VehicleStatus = "inactive"
)

func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleStatusActive, VehicleStatusMaintenance, VehicleStatusInactive:
		return true
	}
	return false
}

type Vehicle struct {
	ID        string        `gorm:"type:varchar(8);primaryKey" json:"id"`
	Model     string        `gorm:"type:varchar(128);not null" json:"model"`
	Year      int           `gorm:"not null" json:"year"`
	Status    VehicleStatus `gorm:"type:vehicle_status;not null;default:'active'" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
