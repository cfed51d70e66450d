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

package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// flagSet is the word stored for a set membership flag.
var flagSet = common.Hash{31: 0x01}

// SlotStore persists contract variables as 32-byte words in the ledger's
// contract storage, so that Ledger.Atomic reverts them together with
// balances.
type SlotStore struct {
	ledger   *Ledger
	contract common.Address
}

// NewSlotStore creates a store over the storage of the given contract.
func NewSlotStore(ledger *Ledger, contract common.Address) *SlotStore {
	return &SlotStore{
		ledger:   ledger,
		contract: contract,
	}
}

// SetFlag marks (prefix, data) as present.
func (s *SlotStore) SetFlag(prefix []byte, data []byte) {
	s.ledger.SetState(s.contract, s.makeKey(prefix, data), flagSet)
}

// HasFlag reports whether (prefix, data) has been marked.
func (s *SlotStore) HasFlag(prefix []byte, data []byte) bool {
	return s.ledger.GetState(s.contract, s.makeKey(prefix, data)) == flagSet
}

// SetAddress stores an address variable.
func (s *SlotStore) SetAddress(prefix []byte, addr common.Address) {
	s.ledger.SetState(s.contract, s.makeKey(prefix, nil), common.BytesToHash(addr.Bytes()))
}

// GetAddress loads an address variable, the zero address if unset.
func (s *SlotStore) GetAddress(prefix []byte) common.Address {
	return common.BytesToAddress(s.ledger.GetState(s.contract, s.makeKey(prefix, nil)).Bytes())
}

// SetUint64 stores a counter variable.
func (s *SlotStore) SetUint64(prefix []byte, val uint64) {
	s.ledger.SetState(s.contract, s.makeKey(prefix, nil), common.BytesToHash(s.uint64ToBytes(val)))
}

// GetUint64 loads a counter variable, zero if unset.
func (s *SlotStore) GetUint64(prefix []byte) uint64 {
	word := s.ledger.GetState(s.contract, s.makeKey(prefix, nil))
	return binary.BigEndian.Uint64(word[common.HashLength-8:])
}

// makeKey 生成存储键
func (s *SlotStore) makeKey(prefix []byte, data []byte) common.Hash {
	return crypto.Keccak256Hash(prefix, data)
}

// uint64ToBytes 将 uint64 转换为字节数组
func (s *SlotStore) uint64ToBytes(val uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, val)
	return buf
}
