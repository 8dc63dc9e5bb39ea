package model

import (
	"time"

	"gorm.io/gorm"
)

// Role values a membership can carry. A user may hold a different role in
// every organization they belong to; the role only has meaning inside that
// organization.
const (
	RoleParent = "parent"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"
)

// Membership associates a user with an organization and the role the user
// holds there.
type Membership struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UserID         uint           `json:"user_id" gorm:"index;not null"`
	OrganizationID uint           `json:"organization_id" gorm:"index;not null"`
	Role           string         `json:"role" gorm:"type:varchar(50);not null;default:'parent'"`
	Active         bool           `json:"active" gorm:"default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User         User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Organization Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}
