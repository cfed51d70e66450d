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

package message

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID identifies a ledger using the relay network's chain numbering.
type ChainID uint16

const (
	ChainSepolia     ChainID = 10002 // custody chain (Chain A)
	ChainBaseSepolia ChainID = 10004 // governance chain (Chain B)
)

// String implements fmt.Stringer.
func (id ChainID) String() string {
	switch id {
	case ChainSepolia:
		return "sepolia"
	case ChainBaseSepolia:
		return "base-sepolia"
	default:
		return fmt.Sprintf("chain-%d", uint16(id))
	}
}

// ErrNotAnAddress is returned when a 32-byte emitter identity does not wrap a
// 20-byte address.
var ErrNotAnAddress = errors.New("emitter identity is not a padded address")

// ToEmitter converts an address into the 32-byte identity format used by the
// relay: the address left-padded with twelve zero bytes.
func ToEmitter(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), common.HashLength))
}

// FromEmitter recovers the address wrapped in a relay identity.
func FromEmitter(emitter common.Hash) (common.Address, error) {
	for _, b := range emitter[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, ErrNotAnAddress
		}
	}
	return common.BytesToAddress(emitter[common.HashLength-common.AddressLength:]), nil
}
