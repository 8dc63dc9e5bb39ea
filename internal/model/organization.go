package model

import (
	"time"

	"gorm.io/gorm"
)

// Organization represents a single tenant. Every other record in the system
// is partitioned by its id.
type Organization struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Slug      string         `json:"slug" gorm:"type:varchar(100);index"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
