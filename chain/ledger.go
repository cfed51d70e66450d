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
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/mccoysc/xchain-governance/message"
)

// Ledger errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrContractExists      = errors.New("contract already deployed at address")
)

// Contract is code deployed at an address of a Ledger. Call is invoked after
// the attached value has been credited to the contract; returning an error
// reverts the value transfer and every state change made during the call.
type Contract interface {
	Call(ctx *CallContext, input []byte) error
}

// CallContext describes a single contract invocation.
type CallContext struct {
	Ledger      *Ledger
	Caller      common.Address // immediate caller
	Self        common.Address // address of the invoked contract
	Value       *big.Int       // attached native value
	BlockNumber uint64
}

// Ledger is a single simulated chain. It provides what the governance core
// assumes from a real ledger: a monotonically increasing block index, native
// balances, contract storage and all-or-nothing execution of an operation.
//
// A Ledger is driven by one sequencer at a time; the lock only guards the
// underlying state database against concurrent readers.
type Ledger struct {
	name    string
	chainID message.ChainID
	block   atomic.Uint64

	mu        sync.Mutex
	state     *state.StateDB
	contracts map[common.Address]Contract

	log log.Logger
}

// NewLedger creates an empty in-memory ledger at block 1.
func NewLedger(name string, chainID message.ChainID) (*Ledger, error) {
	db := rawdb.NewMemoryDatabase()
	statedb, err := state.New(types.EmptyRootHash, state.NewDatabase(triedb.NewDatabase(db, nil), nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create state: %w", err)
	}
	l := &Ledger{
		name:      name,
		chainID:   chainID,
		state:     statedb,
		contracts: make(map[common.Address]Contract),
		log:       log.New("ledger", name, "chain", uint16(chainID)),
	}
	l.block.Store(1)
	return l, nil
}

// Name returns the human readable ledger name.
func (l *Ledger) Name() string { return l.name }

// ChainID returns the relay chain identifier of this ledger.
func (l *Ledger) ChainID() message.ChainID { return l.chainID }

// BlockNumber returns the current block index.
func (l *Ledger) BlockNumber() uint64 { return l.block.Load() }

// Mine advances the block index by n and returns the new index.
func (l *Ledger) Mine(n uint64) uint64 {
	number := l.block.Add(n)
	l.log.Trace("Ledger: mined blocks", "count", n, "number", number)
	return number
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// Balance returns the native balance of an address.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.GetBalance(addr).ToBig()
}

// Fund credits native value out of thin air (genesis allocation).
func (l *Ledger) Fund(addr common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.AddBalance(addr, v, tracing.BalanceIncreaseGenesisBalance)
	return nil
}

// Transfer moves native value between two addresses without invoking code.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transfer(from, to, v)
}

func (l *Ledger) transfer(from, to common.Address, v *uint256.Int) error {
	if v.IsZero() {
		return nil
	}
	if l.state.GetBalance(from).Cmp(v) < 0 {
		return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientBalance, from.Hex(), l.state.GetBalance(from), v)
	}
	l.state.SubBalance(from, v, tracing.BalanceChangeTransfer)
	l.state.AddBalance(to, v, tracing.BalanceChangeTransfer)
	return nil
}

// Atomic runs fn and reverts every balance and storage change it made if it
// returns an error. Calls may be nested.
func (l *Ledger) Atomic(fn func() error) error {
	l.mu.Lock()
	snapshot := l.state.Snapshot()
	l.mu.Unlock()

	if err := fn(); err != nil {
		l.mu.Lock()
		l.state.RevertToSnapshot(snapshot)
		l.mu.Unlock()
		return err
	}
	return nil
}

// Deploy installs a contract at the given address.
func (l *Ledger) Deploy(addr common.Address, contract Contract) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.contracts[addr]; exists {
		return fmt.Errorf("%w: %s", ErrContractExists, addr.Hex())
	}
	l.contracts[addr] = contract
	l.log.Debug("Ledger: contract deployed", "address", addr)
	return nil
}

// IsContract reports whether code is deployed at addr.
func (l *Ledger) IsContract(addr common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.contracts[addr]
	return ok
}

// Call transfers value from caller to target and, when target is a contract,
// invokes it with input. Calls to plain accounts only move value. The whole
// call is atomic.
func (l *Ledger) Call(from, to common.Address, value *big.Int, input []byte) error {
	if value == nil {
		value = new(big.Int)
	}
	v, err := toUint256(value)
	if err != nil {
		return err
	}
	return l.Atomic(func() error {
		l.mu.Lock()
		err := l.transfer(from, to, v)
		contract := l.contracts[to]
		l.mu.Unlock()
		if err != nil {
			return err
		}
		if contract == nil {
			return nil
		}
		ctx := &CallContext{
			Ledger:      l,
			Caller:      from,
			Self:        to,
			Value:       new(big.Int).Set(value),
			BlockNumber: l.BlockNumber(),
		}
		return contract.Call(ctx, input)
	})
}

// Deposit sends value to an address with empty input.
func (l *Ledger) Deposit(from, to common.Address, amount *big.Int) error {
	return l.Call(from, to, amount, nil)
}

// GetState reads a storage word of a contract.
func (l *Ledger) GetState(addr common.Address, key common.Hash) common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.GetState(addr, key)
}

// SetState writes a storage word of a contract.
func (l *Ledger) SetState(addr common.Address, key, value common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.SetState(addr, key, value)
}
