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
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mccoysc/xchain-governance/chain"
	"github.com/mccoysc/xchain-governance/message"
	"github.com/mccoysc/xchain-governance/treasury"
)

var (
	testRelayer  = common.HexToAddress("0x7e1a000000000000000000000000000000000000")
	testVoter    = common.HexToAddress("0x82A1c924FBbC6c09b5431d99931b423AD1A43384")
	testOwner    = common.HexToAddress("0x0e00000000000000000000000000000000000000")
	testTarget   = common.HexToAddress("0x7a00000000000000000000000000000000000000")
	testTreasury = common.HexToAddress("0x7e00000000000000000000000000000000000000")
	testReceiver = common.HexToAddress("0x4ec0000000000000000000000000000000000000")
)

type fixture struct {
	ledger    *chain.Ledger
	treasury  *treasury.Treasury
	validator *Validator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger, err := chain.NewLedger("custody", message.ChainSepolia)
	require.NoError(t, err)

	tr, err := treasury.New(ledger, testTreasury, testOwner)
	require.NoError(t, err)
	require.NoError(t, ledger.Fund(testOwner, big.NewInt(10)))
	require.NoError(t, ledger.Deposit(testOwner, testTreasury, big.NewInt(10)))

	trust := TrustConfig{
		Relayer:     testRelayer,
		SourceChain: message.ChainBaseSepolia,
		Emitter:     message.ToEmitter(testVoter),
	}
	v, err := New(trust, testReceiver, ledger, tr)
	require.NoError(t, err)
	require.NoError(t, tr.SetExecutor(testOwner, testReceiver))

	return &fixture{ledger: ledger, treasury: tr, validator: v}
}

func payFor(t *testing.T, id uint64, value int64) []byte {
	t.Helper()
	payload, err := message.EncodeCommand(message.NewCommand(id, testTarget, big.NewInt(value), nil))
	require.NoError(t, err)
	return payload
}

func TestTrustConfigValidate(t *testing.T) {
	good := TrustConfig{Relayer: testRelayer, SourceChain: message.ChainBaseSepolia, Emitter: message.ToEmitter(testVoter)}
	require.NoError(t, good.Validate())

	bad := good
	bad.Relayer = common.Address{}
	require.ErrorIs(t, bad.Validate(), ErrInvalidTrustConfig)

	bad = good
	bad.SourceChain = 0
	require.ErrorIs(t, bad.Validate(), ErrInvalidTrustConfig)

	bad = good
	bad.Emitter = common.Hash{}
	_, err := New(bad, testReceiver, nil, nil)
	require.ErrorIs(t, err, ErrInvalidTrustConfig)
}

func TestReceiveExecutesCommand(t *testing.T) {
	f := newFixture(t)
	id := common.HexToHash("0x01")

	events := make(chan CommandExecutedEvent, 1)
	sub := f.validator.SubscribeCommandExecuted(events)
	defer sub.Unsubscribe()

	result, err := f.validator.ReceiveMessage(testRelayer, payFor(t, 1, 1), nil, message.ToEmitter(testVoter), message.ChainBaseSepolia, id)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, uint64(1), result.Command.ProposalID.Uint64())
	require.True(t, f.validator.IsProcessed(id))
	require.Equal(t, int64(9), f.treasury.Balance().Int64())
	require.Equal(t, int64(1), f.ledger.Balance(testTarget).Int64())

	ev := <-events
	require.True(t, ev.Success)
	require.Equal(t, id, ev.DeliveryID)
	require.Equal(t, testTarget, ev.Target)
}

func TestReceiveRejections(t *testing.T) {
	emitter := message.ToEmitter(testVoter)
	tests := []struct {
		name    string
		caller  common.Address
		chain   message.ChainID
		emitter common.Hash
		want    error
	}{
		{"wrong caller", testOwner, message.ChainBaseSepolia, emitter, ErrUnauthorizedCaller},
		{"wrong chain", testRelayer, message.ChainSepolia, emitter, ErrWrongSourceChain},
		{"wrong emitter", testRelayer, message.ChainBaseSepolia, message.ToEmitter(testOwner), ErrUnauthorizedEmitter},
		// Same 20 bytes with dirty padding is a different identity.
		{"truncated emitter match", testRelayer, message.ChainBaseSepolia, common.BytesToHash(append([]byte{0x01}, emitter[1:]...)), ErrUnauthorizedEmitter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := common.HexToHash("0x02")

			_, err := f.validator.ReceiveMessage(tt.caller, payFor(t, 1, 1), nil, tt.emitter, tt.chain, id)
			require.ErrorIs(t, err, tt.want)
			require.True(t, IsAuthorizationError(err))
			require.False(t, f.validator.IsProcessed(id))
			require.Equal(t, int64(10), f.treasury.Balance().Int64())
		})
	}

	t.Run("replayed delivery", func(t *testing.T) {
		f := newFixture(t)
		id := common.HexToHash("0x03")

		_, err := f.validator.ReceiveMessage(testRelayer, payFor(t, 1, 1), nil, emitter, message.ChainBaseSepolia, id)
		require.NoError(t, err)
		require.Equal(t, int64(9), f.treasury.Balance().Int64())

		_, err = f.validator.ReceiveMessage(testRelayer, payFor(t, 1, 1), nil, emitter, message.ChainBaseSepolia, id)
		require.ErrorIs(t, err, ErrAlreadyProcessed)
		require.True(t, IsStateError(err))
		require.Equal(t, int64(9), f.treasury.Balance().Int64())
	})
}

func TestReceiveCheckOrder(t *testing.T) {
	f := newFixture(t)
	emitter := message.ToEmitter(testVoter)
	id := common.HexToHash("0x04")

	_, err := f.validator.ReceiveMessage(testRelayer, payFor(t, 1, 1), nil, emitter, message.ChainBaseSepolia, id)
	require.NoError(t, err)

	// Everything wrong: the caller check wins.
	_, err = f.validator.ReceiveMessage(testOwner, nil, nil, common.Hash{}, 0, id)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	// Chain before emitter before replay.
	_, err = f.validator.ReceiveMessage(testRelayer, nil, nil, common.Hash{}, 0, id)
	require.ErrorIs(t, err, ErrWrongSourceChain)
	_, err = f.validator.ReceiveMessage(testRelayer, nil, nil, common.Hash{}, message.ChainBaseSepolia, id)
	require.ErrorIs(t, err, ErrUnauthorizedEmitter)
	_, err = f.validator.ReceiveMessage(testRelayer, nil, nil, emitter, message.ChainBaseSepolia, id)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestReceiveFailedExecutionStaysProcessed(t *testing.T) {
	f := newFixture(t)
	emitter := message.ToEmitter(testVoter)

	events := make(chan CommandExecutedEvent, 2)
	sub := f.validator.SubscribeCommandExecuted(events)
	defer sub.Unsubscribe()

	// More than the treasury holds.
	id := common.HexToHash("0x05")
	result, err := f.validator.ReceiveMessage(testRelayer, payFor(t, 7, 11), nil, emitter, message.ChainBaseSepolia, id)
	require.NoError(t, err)
	require.False(t, result.Success())
	require.ErrorIs(t, result.Err, ErrExecutionFailed)
	require.ErrorIs(t, result.Err, treasury.ErrInsufficientFunds)
	require.True(t, f.validator.IsProcessed(id))
	require.Equal(t, int64(10), f.treasury.Balance().Int64())
	require.False(t, (<-events).Success)

	_, err = f.validator.ReceiveMessage(testRelayer, payFor(t, 7, 11), nil, emitter, message.ChainBaseSepolia, id)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	// Undecodable payload.
	id = common.HexToHash("0x06")
	result, err = f.validator.ReceiveMessage(testRelayer, []byte{0x02, 0x00}, nil, emitter, message.ChainBaseSepolia, id)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, message.ErrUnknownVersion)
	require.Nil(t, result.Command)
	require.True(t, f.validator.IsProcessed(id))
	ev := <-events
	require.False(t, ev.Success)
	require.NotEmpty(t, ev.Reason)
}

func TestReceiveAsEndpoint(t *testing.T) {
	f := newFixture(t)
	emitter := message.ToEmitter(testVoter)

	err := f.validator.Receive(testRelayer, payFor(t, 1, 1), nil, emitter, message.ChainBaseSepolia, common.HexToHash("0x07"))
	require.NoError(t, err)

	err = f.validator.Receive(testOwner, payFor(t, 1, 1), nil, emitter, message.ChainBaseSepolia, common.HexToHash("0x08"))
	require.True(t, errors.Is(err, ErrUnauthorizedCaller))
}
