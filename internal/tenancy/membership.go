package tenancy

import (
	"errors"
	"time"

	"scouthub/internal/model"
	"scouthub/prometheus"

	"gorm.io/gorm"
)

// MembershipStore answers "which role does this user hold in this
// organization". The binder consults it whenever the credential's claim was
// not issued for the resolved organization.
type MembershipStore struct {
	db *gorm.DB
}

// NewMembershipStore creates a store around the given database handle.
func NewMembershipStore(db *gorm.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// RoleIn returns the active role the user holds within the organization, or
// an empty string if the user is not a member.
func (s *MembershipStore) RoleIn(userID, organizationID uint) (string, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var membership model.Membership
	err := s.db.
		Select("role").
		Where("user_id = ? AND organization_id = ? AND active = ?", userID, organizationID, true).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return membership.Role, nil
}
