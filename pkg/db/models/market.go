package models

import (
	"time"

	"gorm.io/gorm"
)

// Market is a tenant; every report row is scoped to one.
type Market struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Domain    *string        `gorm:"column:domain"`
	Path      *string        `gorm:"column:path"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// MarketUser grants a user visibility into a market.
type MarketUser struct {
	MarketID int64 `gorm:"column:market_id;primaryKey"`
	UserID   int64 `gorm:"column:user_id;primaryKey"`
}

func (MarketUser) TableName() string { return "market_user" }
