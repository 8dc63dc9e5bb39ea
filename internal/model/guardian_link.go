package model

import (
	"time"

	"gorm.io/gorm"
)

// GuardianLink grants a user direct access to one participant record,
// independent of the role the user holds in the organization. It is the
// second authorization channel next to role checks: a parent can read and
// update the participants they are linked to even though the parent role
// alone would not allow it.
type GuardianLink struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	UserID        uint           `json:"user_id" gorm:"index;not null"`
	ParticipantID uint           `json:"participant_id" gorm:"index;not null"`
	Relation      string         `json:"relation,omitempty" gorm:"type:varchar(50)"`
	Active        bool           `json:"active" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User        User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Participant Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
}
