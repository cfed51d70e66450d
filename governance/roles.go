// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package governance

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

var (
	// DefaultAdminRole administers every role that has no explicit admin.
	DefaultAdminRole = common.Hash{}

	// MinterRole may mint voting tokens.
	MinterRole = crypto.Keccak256Hash([]byte("MINTER_ROLE"))
)

// AccessControl maps permission identifiers to the set of accounts holding them
type AccessControl struct {
	mu      sync.RWMutex
	members map[common.Hash]mapset.Set[common.Address]
	admins  map[common.Hash]common.Hash
}

// NewAccessControl creates a role registry with admin holding DefaultAdminRole
func NewAccessControl(admin common.Address) *AccessControl {
	ac := &AccessControl{
		members: make(map[common.Hash]mapset.Set[common.Address]),
		admins:  make(map[common.Hash]common.Hash),
	}
	ac.grant(DefaultAdminRole, admin)
	return ac
}

// HasRole checks if an account holds a role
func (ac *AccessControl) HasRole(role common.Hash, account common.Address) bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	return ac.hasRole(role, account)
}

func (ac *AccessControl) hasRole(role common.Hash, account common.Address) bool {
	set, exists := ac.members[role]
	return exists && set.Contains(account)
}

// GetRoleAdmin returns the role whose holders administer role
func (ac *AccessControl) GetRoleAdmin(role common.Hash) common.Hash {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	return ac.admins[role]
}

// GrantRole grants role to account. The caller must hold the role's admin role.
func (ac *AccessControl) GrantRole(caller common.Address, role common.Hash, account common.Address) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := ac.checkAdmin(caller, role); err != nil {
		return err
	}
	if ac.grant(role, account) {
		log.Info("AccessControl: role granted", "role", role, "account", account, "sender", caller)
	}
	return nil
}

// RevokeRole revokes role from account. The caller must hold the role's admin role.
func (ac *AccessControl) RevokeRole(caller common.Address, role common.Hash, account common.Address) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := ac.checkAdmin(caller, role); err != nil {
		return err
	}
	if ac.revoke(role, account) {
		log.Info("AccessControl: role revoked", "role", role, "account", account, "sender", caller)
	}
	return nil
}

// RenounceRole removes role from the caller itself.
func (ac *AccessControl) RenounceRole(caller common.Address, role common.Hash) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.revoke(role, caller) {
		log.Info("AccessControl: role renounced", "role", role, "account", caller)
	}
}

// SetRoleAdmin changes the admin role of role. The caller must hold the
// current admin role.
func (ac *AccessControl) SetRoleAdmin(caller common.Address, role, adminRole common.Hash) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := ac.checkAdmin(caller, role); err != nil {
		return err
	}
	previous := ac.admins[role]
	ac.admins[role] = adminRole
	log.Info("AccessControl: role admin changed", "role", role, "previous", previous, "admin", adminRole)
	return nil
}

// Members returns the holders of a role in address order
func (ac *AccessControl) Members(role common.Hash) []common.Address {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	set, exists := ac.members[role]
	if !exists {
		return nil
	}
	return sortedAddresses(set)
}

func (ac *AccessControl) checkAdmin(caller common.Address, role common.Hash) error {
	admin := ac.admins[role]
	if !ac.hasRole(admin, caller) {
		return fmt.Errorf("%w: %s lacks admin role %s", ErrUnauthorized, caller.Hex(), admin.Hex())
	}
	return nil
}

func (ac *AccessControl) grant(role common.Hash, account common.Address) bool {
	set, exists := ac.members[role]
	if !exists {
		set = mapset.NewThreadUnsafeSet[common.Address]()
		ac.members[role] = set
	}
	return set.Add(account)
}

func (ac *AccessControl) revoke(role common.Hash, account common.Address) bool {
	set, exists := ac.members[role]
	if !exists || !set.Contains(account) {
		return false
	}
	set.Remove(account)
	return true
}

func sortedAddresses(set mapset.Set[common.Address]) []common.Address {
	addrs := set.ToSlice()
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return addrs
}
