package user

import "strings"

// Role is the closed set of job functions a user can hold.
type Role string

const (
	RoleStaff   Role = "STAFF"
	RoleManager Role = "MANAGER"
	RoleFinance Role = "FINANCE"
)

var AllRoles = []Role{RoleStaff, RoleManager, RoleFinance}

// ParseRole normalises s and reports whether it names a known role.
// An empty string maps to RoleStaff.
func ParseRole(s string) (Role, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RoleStaff, true
	}
	r := Role(s)
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager, RoleFinance:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func (r Role) CanSubmitClaims() bool {
	return r == RoleStaff
}

func (r Role) CanReviewClaims() bool {
	return r == RoleManager || r == RoleFinance
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

func (p *Principal) CanSubmitClaims() bool {
	return p != nil && p.Role.CanSubmitClaims()
}

func (p *Principal) CanReviewClaims() bool {
	return p != nil && p.Role.CanReviewClaims()
}

// HasAnyRole reports whether the principal holds one of roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
