package model

import (
	"time"

	"gorm.io/gorm"
)

// Announcement is an organization-scoped news item. Published entries are
// readable without a credential as long as the tenant could be resolved.
type Announcement struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	OrganizationID uint           `json:"organization_id" gorm:"index;not null"`
	Title          string         `json:"title" gorm:"type:varchar(200);not null"`
	Body           string         `json:"body" gorm:"type:text"`
	Published      bool           `json:"published" gorm:"default:false"`
	PublishedAt    *time.Time     `json:"published_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
