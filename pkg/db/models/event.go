package models

import (
	"time"

	"gorm.io/gorm"
)

type EventName struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name;not null"`
}

// LogEvent is a single tracked visitor interaction.
type LogEvent struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	MarketID    int64          `gorm:"column:market_id;not null;index"`
	EventNameID int64          `gorm:"column:event_name_id;not null"`
	SessionID   string         `gorm:"column:session_id;not null"`
	Data        *string        `gorm:"column:data"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
