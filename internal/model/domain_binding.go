package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// DomainBinding maps a hostname pattern to an organization so requests can be
// resolved to a tenant by their Host header alone. A pattern is either a full
// hostname ("meute6a.app") or carries a single wildcard label in front
// ("*.scouthub.org").
type DomainBinding struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Pattern        string         `json:"pattern" gorm:"type:varchar(255);uniqueIndex;not null"`
	OrganizationID uint           `json:"organization_id" gorm:"index;not null"`
	Active         bool           `json:"active" gorm:"default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// IsWildcard reports whether the pattern contains a wildcard label.
func (b *DomainBinding) IsWildcard() bool {
	return strings.Contains(b.Pattern, "*")
}

// Matches reports whether the pattern matches the given (already normalized)
// hostname. A "*" label matches exactly one hostname label.
func (b *DomainBinding) Matches(host string) bool {
	if !b.IsWildcard() {
		return b.Pattern == host
	}
	patternLabels := strings.Split(b.Pattern, ".")
	hostLabels := strings.Split(host, ".")
	if len(patternLabels) != len(hostLabels) {
		return false
	}
	for i, label := range patternLabels {
		if label == "*" {
			continue
		}
		if label != hostLabels[i] {
			return false
		}
	}
	return true
}
