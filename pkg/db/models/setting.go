package models

// Setting is a key/value row; OwnerType and OwnerID are nil for system-wide values.
type Setting struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	Key         string  `gorm:"column:key;not null"`
	Value       string  `gorm:"column:value;not null"`
	Type        string  `gorm:"column:type;not null;default:string"`
	Description *string `gorm:"column:description"`
	OwnerID     *int64  `gorm:"column:owner_id"`
	OwnerType   *string `gorm:"column:owner_type"`
}
