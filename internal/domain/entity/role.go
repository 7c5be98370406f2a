// Package entity contains the core business objects of the project.
package entity

import "slices"

// Role represents the function a person holds within the federation.
type Role string

const (
	// RoleAthlete indicates a registered athlete.
	RoleAthlete Role = "athlete"
	// RoleCoach indicates a coach managing athletes and training plans.
	RoleCoach Role = "coach"
	// RoleRepresentative indicates a club or regional representative.
	RoleRepresentative Role = "representative"
	// RoleIntern indicates a sports-medicine or administration intern.
	RoleIntern Role = "intern"
	// RoleAdmin indicates a federation administrator.
	RoleAdmin Role = "admin"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAthlete, RoleCoach, RoleRepresentative, RoleIntern, RoleAdmin:
		return true
	default:
		return false
	}
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string for middleware compatibility.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}
