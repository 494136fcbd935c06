// Package access holds the role grants that gate minting and burning. Roles
// are an explicit (role, account) -> bool mapping administered by a single
// admin account; components ask HasRole instead of reading global state.
package access

import (
	"fmt"
	"sort"

	"oasis.ledger/oasis/internal/types"
)

// Role is a named capability.
type Role string

const (
	MinterRole = "MINTER_ROLE"
	BurnerRole = "BURNER_ROLE"
)

// TokenMinter is the role allowed to mint token.
func TokenMinter(token types.Token) Role { return Role(string(token) + "/" + MinterRole) }

// TokenBurner is the role allowed to burn token.
func TokenBurner(token types.Token) Role { return Role(string(token) + "/" + BurnerRole) }

// CollectionMinter is the role allowed to mint assets of a collection.
func CollectionMinter(c types.Collection) Role {
	return Role("collection/" + string(c) + "/" + MinterRole)
}

// Roles is the grant table.
type Roles struct {
	admin  types.Address
	grants map[Role]map[types.Address]bool
}

// NewRoles creates an empty grant table administered by admin.
func NewRoles(admin types.Address) *Roles {
	return &Roles{
		admin:  admin,
		grants: make(map[Role]map[types.Address]bool),
	}
}

// Admin returns the administering account.
func (r *Roles) Admin() types.Address {
	return r.admin
}

// IsAdmin reports whether account administers the grants.
func (r *Roles) IsAdmin(account types.Address) bool {
	return account != types.ZeroAddress && account == r.admin
}

// HasRole reports whether account holds role.
func (r *Roles) HasRole(role Role, account types.Address) bool {
	return r.grants[role][account]
}

// Grant gives role to account. Only the admin may grant.
func (r *Roles) Grant(caller types.Address, role Role, account types.Address) error {
	if !r.IsAdmin(caller) {
		return fmt.Errorf("grant %s: %w", role, types.ErrUnauthorized)
	}
	r.set(role, account)
	return nil
}

// Revoke removes role from account. Only the admin may revoke.
func (r *Roles) Revoke(caller types.Address, role Role, account types.Address) error {
	if !r.IsAdmin(caller) {
		return fmt.Errorf("revoke %s: %w", role, types.ErrUnauthorized)
	}
	if holders, ok := r.grants[role]; ok {
		delete(holders, account)
		if len(holders) == 0 {
			delete(r.grants, role)
		}
	}
	return nil
}

// Setup grants role without an admin check. Used while applying genesis.
func (r *Roles) Setup(role Role, account types.Address) {
	r.set(role, account)
}

func (r *Roles) set(role Role, account types.Address) {
	holders, ok := r.grants[role]
	if !ok {
		holders = make(map[types.Address]bool)
		r.grants[role] = holders
	}
	holders[account] = true
}

// Snapshot is the serialisable form of the grant table.
type Snapshot struct {
	Admin  types.Address            `json:"admin"`
	Grants map[Role][]types.Address `json:"grants"`
}

// Snapshot exports the grants with holders sorted.
func (r *Roles) Snapshot() Snapshot {
	out := Snapshot{Admin: r.admin, Grants: make(map[Role][]types.Address, len(r.grants))}
	for role, holders := range r.grants {
		list := make([]types.Address, 0, len(holders))
		for a := range holders {
			list = append(list, a)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out.Grants[role] = list
	}
	return out
}

// RestoreRoles rebuilds a grant table from a snapshot.
func RestoreRoles(s Snapshot) *Roles {
	r := NewRoles(s.Admin)
	for role, holders := range s.Grants {
		for _, a := range holders {
			r.set(role, a)
		}
	}
	return r
}
