package model

import "time"

type WorkerRole string

const (
	WorkerRoleAdmin WorkerRole = "admin"
	WorkerRoleUser  WorkerRole = "user"
)

func (r WorkerRole) Valid() bool {
	return r == WorkerRoleAdmin || r == WorkerRoleUser
}

type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusInactive WorkerStatus = "inactive"
)

func (s WorkerStatus) Valid() bool {
	return s == WorkerStatusActive || s == WorkerStatusInactive
}

type Worker struct {
	ID           string       `gorm:"type:varchar(32);primaryKey" json:"id"`
	Name         string       `gorm:"type:varchar(128);not null" json:"name"`
	Email        *string      `gorm:"type:varchar(255)" json:"email,omitempty"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	Role         WorkerRole   `gorm:"type:worker_role;not null;default:'user'" json:"role"`
	Status       WorkerStatus `gorm:"type:worker_status;not null;default:'active'" json:"status"`
	LastActivity *time.Time   `json:"last_activity,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Worker) TableName() string {
	return "workers"
}

func (w Worker) Principal() Principal {
	return Principal{WorkerID: w.ID, Name: w.Name, Role: w.Role}
}
