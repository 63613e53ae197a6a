package auth

import "strings"

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleInvestigator Role = "INVESTIGATOR"
	RoleCommunity    Role = "COMMUNITY"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInvestigator, RoleCommunity:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalises s and returns the matching role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}
