package model

import (
	"time"

	"gorm.io/gorm"
)

// Participant represents a youth member enrolled in an organization. It is
// the resource guardian links point at.
type Participant struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	OrganizationID uint           `json:"organization_id" gorm:"index;not null"`
	FirstName      string         `json:"first_name" gorm:"type:varchar(100)"`
	LastName       string         `json:"last_name" gorm:"type:varchar(100)"`
	Nickname       string         `json:"nickname,omitempty" gorm:"type:varchar(100)"`
	BirthDate      *time.Time     `json:"birth_date,omitempty"`
	GroupName      string         `json:"group_name,omitempty" gorm:"type:varchar(100)"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
