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

package receiver

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/mccoysc/xchain-governance/chain"
	"github.com/mccoysc/xchain-governance/message"
)

// processedPrefix keys the replay guard in contract storage.
var processedPrefix = []byte("processed-delivery")

var (
	deliveriesAcceptedCounter = metrics.NewRegisteredCounter("receiver/deliveries/accepted", nil)
	deliveriesRejectedCounter = metrics.NewRegisteredCounter("receiver/deliveries/rejected", nil)
	executionsFailedCounter   = metrics.NewRegisteredCounter("receiver/executions/failed", nil)
)

// TrustConfig holds the identities a delivery must carry. It is fixed at
// construction.
type TrustConfig struct {
	Relayer     common.Address  // 可信中继
	SourceChain message.ChainID // 可信源链
	Emitter     common.Hash     // 可信发送者（32 字节填充格式）
}

// Validate checks the configuration
func (c TrustConfig) Validate() error {
	if c.Relayer == (common.Address{}) {
		return fmt.Errorf("%w: missing relayer", ErrInvalidTrustConfig)
	}
	if c.SourceChain == 0 {
		return fmt.Errorf("%w: missing source chain", ErrInvalidTrustConfig)
	}
	if c.Emitter == (common.Hash{}) {
		return fmt.Errorf("%w: missing emitter", ErrInvalidTrustConfig)
	}
	return nil
}

// Executor performs a decoded command
type Executor interface {
	Execute(caller, target common.Address, value *big.Int, calldata []byte) error
}

// Result describes an accepted delivery. Err is set when the command could
// not be decoded or executed; the delivery stays processed either way.
type Result struct {
	DeliveryID common.Hash
	Command    *message.Command
	Err        error
}

// Success reports whether the command took effect.
func (r *Result) Success() bool { return r.Err == nil }

// CommandExecutedEvent is emitted for every accepted delivery
type CommandExecutedEvent struct {
	DeliveryID common.Hash
	ProposalID *big.Int
	Target     common.Address
	Value      *big.Int
	Success    bool
	Reason     string
}

// Validator is the single entry point for cross-chain commands on the
// custody chain.
type Validator struct {
	trust    TrustConfig
	address  common.Address
	store    *chain.SlotStore
	executor Executor

	executedFeed event.Feed

	log log.Logger
}

// New creates a validator at address forwarding authenticated commands to executor.
func New(trust TrustConfig, address common.Address, ledger *chain.Ledger, executor Executor) (*Validator, error) {
	if err := trust.Validate(); err != nil {
		return nil, err
	}
	return &Validator{
		trust:    trust,
		address:  address,
		store:    chain.NewSlotStore(ledger, address),
		executor: executor,
		log:      log.New("module", "receiver", "address", address),
	}, nil
}

// Address returns the validator address, the executor identity on the treasury
func (v *Validator) Address() common.Address { return v.address }

// Trust returns the configured identities
func (v *Validator) Trust() TrustConfig { return v.trust }

// IsProcessed reports whether a delivery id has been consumed
func (v *Validator) IsProcessed(deliveryID common.Hash) bool {
	return v.store.HasFlag(processedPrefix, deliveryID.Bytes())
}

// ReceiveMessage authenticates a delivery and executes its command.
func (v *Validator) ReceiveMessage(caller common.Address, payload []byte, additional [][]byte, sourceAddress common.Hash, sourceChain message.ChainID, deliveryID common.Hash) (*Result, error) {
	if err := v.authenticate(caller, sourceAddress, sourceChain, deliveryID); err != nil {
		deliveriesRejectedCounter.Inc(1)
		v.log.Warn("Receiver: delivery rejected", "caller", caller, "chain", sourceChain, "emitter", sourceAddress, "delivery", deliveryID, "err", err)
		return nil, err
	}
	v.store.SetFlag(processedPrefix, deliveryID.Bytes())
	deliveriesAcceptedCounter.Inc(1)

	result := &Result{DeliveryID: deliveryID}
	cmd, err := message.DecodeCommand(payload)
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	} else {
		result.Command = cmd
		if err := v.executor.Execute(v.address, cmd.Target, cmd.Value, cmd.Calldata); err != nil {
			result.Err = fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
	}

	ev := CommandExecutedEvent{DeliveryID: deliveryID, Success: result.Success()}
	if cmd != nil {
		ev.ProposalID = cmd.ProposalID
		ev.Target = cmd.Target
		ev.Value = cmd.Value
	}
	if result.Err != nil {
		executionsFailedCounter.Inc(1)
		ev.Reason = result.Err.Error()
		v.log.Warn("Receiver: command failed", "delivery", deliveryID, "err", result.Err)
	} else {
		v.log.Info("Receiver: command executed", "delivery", deliveryID, "proposal", cmd.ProposalID, "target", cmd.Target, "value", cmd.Value)
	}
	v.executedFeed.Send(ev)
	return result, nil
}

// authenticate runs the delivery checks in order: caller, chain, emitter, replay.
func (v *Validator) authenticate(caller common.Address, sourceAddress common.Hash, sourceChain message.ChainID, deliveryID common.Hash) error {
	// 1. Check relayer
	if caller != v.trust.Relayer {
		return fmt.Errorf("%w: %s", ErrUnauthorizedCaller, caller.Hex())
	}

	// 2. Check source chain
	if sourceChain != v.trust.SourceChain {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongSourceChain, sourceChain, v.trust.SourceChain)
	}

	// 3. Check emitter, compared in full padded form
	if sourceAddress != v.trust.Emitter {
		return fmt.Errorf("%w: %s", ErrUnauthorizedEmitter, sourceAddress.Hex())
	}

	// 4. Check replay
	if v.IsProcessed(deliveryID) {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, deliveryID.Hex())
	}
	return nil
}

// Receive implements relay.Endpoint. Only authentication failures are
// returned; a failed command is reported through events.
func (v *Validator) Receive(caller common.Address, payload []byte, additional [][]byte, sourceAddress common.Hash, sourceChain message.ChainID, deliveryID common.Hash) error {
	_, err := v.ReceiveMessage(caller, payload, additional, sourceAddress, sourceChain, deliveryID)
	return err
}

// SubscribeCommandExecuted subscribes to accepted deliveries
func (v *Validator) SubscribeCommandExecuted(ch chan<- CommandExecutedEvent) event.Subscription {
	return v.executedFeed.Subscribe(ch)
}
