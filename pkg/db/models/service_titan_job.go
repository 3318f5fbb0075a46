package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceTitanJob is a booked job mirrored from the field-service system.
type ServiceTitanJob struct {
	ID                int64          `gorm:"column:id;primaryKey"`
	MarketID          int64          `gorm:"column:market_id;not null;index"`
	ServiceTitanJobID int64          `gorm:"column:service_titan_job_id;not null"`
	Start             time.Time      `gorm:"column:start;not null"`
	End               *time.Time     `gorm:"column:end"`
	JobStatus         *string        `gorm:"column:job_status"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (ServiceTitanJob) TableName() string { return "log_service_titan_jobs" }
