package tenancy

import (
	"scouthub/prometheus"
)

// DenialReason distinguishes why an authorization decision failed.
type DenialReason string

const (
	DenialNone                 DenialReason = ""
	DenialNoIdentity           DenialReason = "no-identity"
	DenialRoleInsufficient     DenialReason = "role-insufficient"
	DenialOwnershipCheckFailed DenialReason = "ownership-check-failed"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

// OwnershipCheck reports whether the subject holds a direct link to the
// resource under decision. The resource and any collaborators (database
// handle, logger) are captured by the closure; the check itself must only
// read.
type OwnershipCheck func(userID uint) bool

// Authorize decides whether the bound context may perform an operation that
// requires one of the given roles. The role is the one the subject holds in
// the resolved organization; a role held elsewhere never counts.
//
// If the role check fails and check is non-nil, the ownership channel is
// evaluated: a positive check grants access (a guardian acting on their own
// participant), a negative one denies with DenialOwnershipCheckFailed. With
// a nil check the decision short-circuits to DenialRoleInsufficient.
func Authorize(rc *RequestContext, required []string, check OwnershipCheck) Decision {
	if !rc.Authenticated() {
		prometheus.RecordAccessDecision("no_identity")
		return Decision{Reason: DenialNoIdentity}
	}

	if rc.Role != "" {
		for _, role := range required {
			if rc.Role == role {
				prometheus.RecordAccessDecision("allowed")
				return Decision{Allowed: true}
			}
		}
	}

	if check == nil {
		prometheus.RecordAccessDecision("role_insufficient")
		return Decision{Reason: DenialRoleInsufficient}
	}
	if check(*rc.UserID) {
		prometheus.RecordAccessDecision("allowed")
		return Decision{Allowed: true}
	}
	prometheus.RecordAccessDecision("ownership_check_failed")
	return Decision{Reason: DenialOwnershipCheckFailed}
}
