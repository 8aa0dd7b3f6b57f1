package permission

import (
	"errors"
	"sort"
	"sync"
)

// Default permission names granted by the shop. Each role also receives the
// permissions of every role ranked below it.
var defaultGrants = map[Role][]string{
	RoleCustomer: {
		"catalog.read",
		"cart.write",
		"orders.own.read",
		"orders.own.write",
		"profile.write",
	},
	RoleStaff: {
		"catalog.write",
		"orders.read",
		"orders.fulfil",
	},
	RoleAdmin: {
		"accounts.read",
		"accounts.write",
		"audit.read",
	},
	RoleSuperadmin: {
		"accounts.delete",
		"roles.write",
	},
}

// RoleManager resolves the flattened permission list of each role.
//
// RoleManager instances are configured during initialization, frozen, and
// then read concurrently.
type RoleManager struct {
	mu       sync.RWMutex
	grants   map[Role][]string
	resolved map[Role][]string
	frozen   bool
}

// NewRoleManager returns a manager seeded with the default shop grants.
func NewRoleManager() *RoleManager {
	rm := &RoleManager{
		grants: make(map[Role][]string, len(defaultGrants)),
	}
	for role, perms := range defaultGrants {
		rm.grants[role] = append([]string(nil), perms...)
	}
	return rm
}

// Grant adds permission names to role before the manager is frozen.
func (rm *RoleManager) Grant(role Role, permissions ...string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if !role.Valid() {
		return ErrUnknownRole
	}
	for _, perm := range permissions {
		if perm == "" {
			return errors.New("permission name empty")
		}
		rm.grants[role] = append(rm.grants[role], perm)
	}
	return nil
}

// Freeze flattens the inheritance chain and rejects further grants.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return
	}

	resolved := make(map[Role][]string, len(ranks))
	seen := make(map[string]struct{})
	var acc []string
	for _, role := range Roles() {
		for _, perm := range rm.grants[role] {
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			acc = append(acc, perm)
		}
		flat := append([]string(nil), acc...)
		sort.Strings(flat)
		resolved[role] = flat
	}

	rm.resolved = resolved
	rm.frozen = true
}

// Permissions returns a copy of the flattened permission list for role.
// Unknown roles receive no permissions.
func (rm *RoleManager) Permissions(role Role) []string {
	rm.mu.RLock()
	frozen := rm.frozen
	rm.mu.RUnlock()
	if !frozen {
		rm.Freeze()
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	perms := rm.resolved[role]
	return append([]string(nil), perms...)
}
