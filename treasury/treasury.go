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

package treasury

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/mccoysc/xchain-governance/chain"
)

// Treasury errors
var (
	ErrUnauthorizedCaller = errors.New("caller is not authorized")
	ErrInsufficientFunds  = errors.New("treasury balance below requested value")
	ErrExecutionFailed    = errors.New("treasury execution failed")
	ErrUnknownMethod      = errors.New("treasury does not accept call data")
	ErrInvalidExecutor    = errors.New("invalid executor")
)

// Storage slot prefixes
var (
	ownerPrefix    = []byte("treasury-owner")
	executorPrefix = []byte("treasury-executor")
)

var (
	executionsCounter       = metrics.NewRegisteredCounter("treasury/executions", nil)
	executionsFailedCounter = metrics.NewRegisteredCounter("treasury/executions/failed", nil)
)

// ExecutedEvent is emitted after the treasury executed a command
type ExecutedEvent struct {
	Target   common.Address
	Value    *big.Int
	Calldata []byte
}

// DepositEvent is emitted when the treasury receives funds
type DepositEvent struct {
	From  common.Address
	Value *big.Int
}

// ExecutorChangedEvent is emitted when the owner replaces the executor
type ExecutorChangedEvent struct {
	Previous common.Address
	Executor common.Address
}

// Treasury custodies funds and moves them only on behalf of its executor.
// Owner and executor live in contract storage of the ledger.
type Treasury struct {
	address common.Address
	ledger  *chain.Ledger
	store   *chain.SlotStore

	executedFeed event.Feed
	depositFeed  event.Feed
	executorFeed event.Feed

	log log.Logger
}

// New deploys a treasury at address, owned by owner.
func New(ledger *chain.Ledger, address, owner common.Address) (*Treasury, error) {
	t := &Treasury{
		address: address,
		ledger:  ledger,
		store:   chain.NewSlotStore(ledger, address),
		log:     log.New("module", "treasury", "address", address),
	}
	if err := ledger.Deploy(address, t); err != nil {
		return nil, err
	}
	t.store.SetAddress(ownerPrefix, owner)
	t.log.Info("Treasury: deployed", "owner", owner)
	return t, nil
}

// Call implements chain.Contract. Plain value transfers are deposits; any
// input is rejected.
func (t *Treasury) Call(ctx *chain.CallContext, input []byte) error {
	if len(input) != 0 {
		return ErrUnknownMethod
	}
	t.log.Debug("Treasury: deposit", "from", ctx.Caller, "value", ctx.Value)
	t.depositFeed.Send(DepositEvent{From: ctx.Caller, Value: ctx.Value})
	return nil
}

// Address returns the treasury address
func (t *Treasury) Address() common.Address { return t.address }

// Owner returns the account allowed to replace the executor
func (t *Treasury) Owner() common.Address {
	return t.store.GetAddress(ownerPrefix)
}

// Executor returns the only account allowed to move funds
func (t *Treasury) Executor() common.Address {
	return t.store.GetAddress(executorPrefix)
}

// Balance returns the custodied funds
func (t *Treasury) Balance() *big.Int {
	return t.ledger.Balance(t.address)
}

// SetExecutor replaces the trusted executor. Only the owner may call it.
func (t *Treasury) SetExecutor(caller, executor common.Address) error {
	if owner := t.Owner(); caller != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorizedCaller, caller.Hex())
	}
	if executor == (common.Address{}) {
		return ErrInvalidExecutor
	}
	previous := t.Executor()
	t.store.SetAddress(executorPrefix, executor)

	t.log.Info("Treasury: executor changed", "previous", previous, "executor", executor)
	t.executorFeed.Send(ExecutorChangedEvent{Previous: previous, Executor: executor})
	return nil
}

// Execute sends value to target and invokes it with calldata when target is a
// contract. Only the executor may call it. A failing call reverts entirely.
func (t *Treasury) Execute(caller, target common.Address, value *big.Int, calldata []byte) error {
	if executor := t.Executor(); executor == (common.Address{}) || caller != executor {
		return fmt.Errorf("%w: %s is not the executor", ErrUnauthorizedCaller, caller.Hex())
	}
	if value == nil {
		value = new(big.Int)
	}
	if balance := t.Balance(); balance.Cmp(value) < 0 {
		executionsFailedCounter.Inc(1)
		return fmt.Errorf("%w: %w: have %v, need %v", ErrExecutionFailed, ErrInsufficientFunds, balance, value)
	}
	if err := t.ledger.Call(t.address, target, value, calldata); err != nil {
		executionsFailedCounter.Inc(1)
		t.log.Warn("Treasury: execution failed", "target", target, "value", value, "err", err)
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	executionsCounter.Inc(1)
	t.log.Info("Treasury: executed", "target", target, "value", value, "calldata", len(calldata))
	t.executedFeed.Send(ExecutedEvent{Target: target, Value: new(big.Int).Set(value), Calldata: common.CopyBytes(calldata)})
	return nil
}

// SubscribeExecuted subscribes to executed commands
func (t *Treasury) SubscribeExecuted(ch chan<- ExecutedEvent) event.Subscription {
	return t.executedFeed.Subscribe(ch)
}

// SubscribeDeposit subscribes to deposits
func (t *Treasury) SubscribeDeposit(ch chan<- DepositEvent) event.Subscription {
	return t.depositFeed.Subscribe(ch)
}

// SubscribeExecutorChanged subscribes to executor changes
func (t *Treasury) SubscribeExecutorChanged(ch chan<- ExecutorChangedEvent) event.Subscription {
	return t.executorFeed.Subscribe(ch)
}

// IsAuthorizationError reports whether err was caused by the caller's identity.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorizedCaller)
}

// IsExecutionError reports whether err is a failed fund movement.
func IsExecutionError(err error) bool {
	return errors.Is(err, ErrExecutionFailed)
}
