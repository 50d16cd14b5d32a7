// Package auth resolves the calling principal once per request and hands it
// to the services as a plain value.
package auth

import (
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
)

type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
	RoleAdmin     Role = "ADMIN"
	RoleSystem    Role = "SYSTEM"
)

type Principal struct {
	ID         uint `json:"id"`
	Role       Role `json:"role"`
	IsVerified bool `json:"is_verified"`
}

// System is the principal used by scheduled jobs and the operator CLI.
var System = Principal{ID: 0, Role: RoleSystem, IsVerified: true}

func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Require returns a ForbiddenError unless p holds one of roles.
func (p Principal) Require(roles ...Role) error {
	if p.Is(roles...) {
		return nil
	}
	return apperr.Forbidden("role not permitted for this operation")
}

// Operator reports whether p may run administrative overrides.
func (p Principal) Operator() bool {
	return p.Is(RoleAdmin, RoleSystem)
}
