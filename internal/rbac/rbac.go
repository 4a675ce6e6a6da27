package rbac

import (
	"errors"
	"fmt"

	"github.com/fraudshield/backend/internal/models"
)

// ErrForbidden is returned when an actor lacks the capability an action requires.
var ErrForbidden = errors.New("forbidden")

// Role constants
const (
	RoleFraudOfficer  = "FRAUD_OFFICER"
	RoleSeniorOfficer = "SENIOR_OFFICER"
	RoleSupervisor    = "SUPERVISOR"
)

// Capability constants
const (
	CapFreeze   = "FREEZE"
	CapReject   = "REJECT"
	CapEscalate = "ESCALATE"
	CapAdmin    = "ADMIN"
)

// RoleCapabilities defines what each officer role can do.
var RoleCapabilities = map[string][]string{
	RoleFraudOfficer:  {CapReject},
	RoleSeniorOfficer: {CapReject, CapFreeze, CapEscalate},
	RoleSupervisor:    {CapReject, CapFreeze, CapEscalate, CapAdmin},
}

// SystemCapabilities is granted to system-initiated transitions (timers, ingestion).
var SystemCapabilities = []string{CapFreeze}

// requiredCapability maps a target case status to the capability needed to enter it.
var requiredCapability = map[string]string{
	models.CaseStatusFreezeSent:      CapFreeze,
	models.CaseStatusBankReview:      CapFreeze,
	models.CaseStatusFreezeConfirmed: CapFreeze,
	models.CaseStatusPartiallyFrozen: CapFreeze,
	models.CaseStatusRejected:        CapReject,
	models.CaseStatusEscalated:       CapEscalate,
	models.CaseStatusFundsCredited:   CapAdmin,
}

func IsKnownRole(role string) bool {
	_, ok := RoleCapabilities[role]
	return ok
}

// CapabilitiesFor returns the capability set of a role; unknown roles get none.
func CapabilitiesFor(role string) []string {
	return RoleCapabilities[role]
}

// HasCapability reports whether caps grants capability. ADMIN grants everything.
func HasCapability(caps []string, capability string) bool {
	for _, c := range caps {
		if c == capability || c == CapAdmin {
			return true
		}
	}
	return false
}

// RequiredCapability returns the capability needed to move a case into status.
func RequiredCapability(status string) (string, bool) {
	c, ok := requiredCapability[status]
	return c, ok
}

// AuthorizeTransition checks caps against the target status of a transition.
func AuthorizeTransition(caps []string, target string) error {
	required, ok := requiredCapability[target]
	if !ok {
		// Unknown targets are left to the transition validator to reject.
		return nil
	}
	if !HasCapability(caps, required) {
		return fmt.Errorf("%w: %s requires %s capability", ErrForbidden, target, required)
	}
	return nil
}
