package permission

import (
	"errors"
	"strings"
)

// Role is one of the closed set of account roles.
type Role string

const (
	// RoleCustomer is the default role granted at registration.
	RoleCustomer Role = "customer"
	// RoleStaff can manage catalog and fulfil orders.
	RoleStaff Role = "staff"
	// RoleAdmin can manage accounts below superadmin.
	RoleAdmin Role = "admin"
	// RoleSuperadmin can manage everything, including other admins.
	RoleSuperadmin Role = "superadmin"
)

// ErrUnknownRole is returned by [Parse] for names outside the role set.
var ErrUnknownRole = errors.New("unknown role")

var ranks = map[Role]int{
	RoleCustomer:   1,
	RoleStaff:      2,
	RoleAdmin:      3,
	RoleSuperadmin: 4,
}

// Roles returns the role set in ascending order.
func Roles() []Role {
	return []Role{RoleCustomer, RoleStaff, RoleAdmin, RoleSuperadmin}
}

// Parse normalizes name and maps it onto the role set. The historical "user"
// name is accepted as customer.
func Parse(name string) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(name)))
	if normalized == "user" {
		return RoleCustomer, nil
	}
	if _, ok := ranks[normalized]; !ok {
		return "", ErrUnknownRole
	}
	return normalized, nil
}

// Valid reports whether r is part of the role set.
func (r Role) Valid() bool {
	_, ok := ranks[r]
	return ok
}

// Rank returns the position of r in the ordering, 0 for unknown roles.
func (r Role) Rank() int {
	return ranks[r]
}

// AtLeast reports whether r ranks at or above min. Unknown roles never pass.
func (r Role) AtLeast(min Role) bool {
	rank, ok := ranks[r]
	if !ok {
		return false
	}
	minRank, ok := ranks[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

func (r Role) String() string {
	return string(r)
}
