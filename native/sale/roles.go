package sale

import (
	"fmt"

	"salegate/crypto"
)

// StaticRoles is a RoleChecker backed by a fixed grant table, typically
// loaded from the daemon configuration. Deployments with an external
// capability service provide their own RoleChecker instead.
type StaticRoles struct {
	grants map[string]map[[20]byte]struct{}
}

// NewStaticRoles builds the checker from role name to bech32 address lists.
func NewStaticRoles(grants map[string][]string) (*StaticRoles, error) {
	roles := &StaticRoles{grants: make(map[string]map[[20]byte]struct{}, len(grants))}
	for role, members := range grants {
		set := make(map[[20]byte]struct{}, len(members))
		for _, member := range members {
			decoded, err := crypto.DecodeAddress(member)
			if err != nil {
				return nil, fmt.Errorf("roles: decode %q for %s: %w", member, role, err)
			}
			set[decoded.Array()] = struct{}{}
		}
		roles.grants[role] = set
	}
	return roles, nil
}

// Grant adds a single membership. Primarily used by tests and genesis
// bootstrap.
func (r *StaticRoles) Grant(role string, addr [20]byte) {
	if r.grants == nil {
		r.grants = make(map[string]map[[20]byte]struct{})
	}
	set, ok := r.grants[role]
	if !ok {
		set = make(map[[20]byte]struct{})
		r.grants[role] = set
	}
	set[addr] = struct{}{}
}

// HasRole implements RoleChecker.
func (r *StaticRoles) HasRole(role string, addr []byte) bool {
	if r == nil || len(addr) != 20 {
		return false
	}
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	var key [20]byte
	copy(key[:], addr)
	_, ok = set[key]
	return ok
}
