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
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CommandVersion is the layout tag prefixed to every encoded command.
const CommandVersion byte = 0x01

// Codec errors
var (
	ErrEmptyPayload     = errors.New("empty command payload")
	ErrUnknownVersion   = errors.New("unknown command payload version")
	ErrMalformedPayload = errors.New("malformed command payload")
	ErrNonCanonical     = errors.New("command payload is not canonically encoded")
	ErrInvalidCommand   = errors.New("invalid command")
)

var (
	uint256Type, _ = abi.NewType("uint256", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
	bytesType, _   = abi.NewType("bytes", "", nil)

	// commandArguments is the ABI tuple (uint256 proposalId, address target,
	// uint256 value, bytes calldata).
	commandArguments = abi.Arguments{
		{Name: "proposalId", Type: uint256Type},
		{Name: "target", Type: addressType},
		{Name: "value", Type: uint256Type},
		{Name: "calldata", Type: bytesType},
	}

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Command is the cross-chain instruction produced by a finalized proposal and
// executed by the treasury on the destination ledger.
type Command struct {
	ProposalID *big.Int
	Target     common.Address
	Value      *big.Int
	Calldata   []byte
}

// NewCommand builds a command for the given proposal id.
func NewCommand(proposalID uint64, target common.Address, value *big.Int, calldata []byte) *Command {
	if value == nil {
		value = new(big.Int)
	}
	return &Command{
		ProposalID: new(big.Int).SetUint64(proposalID),
		Target:     target,
		Value:      new(big.Int).Set(value),
		Calldata:   common.CopyBytes(calldata),
	}
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	return fmt.Sprintf("command{proposal: %v, target: %s, value: %v, calldata: %d bytes}",
		c.ProposalID, c.Target.Hex(), c.Value, len(c.Calldata))
}

func validUint256(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint256) <= 0
}

// EncodeCommand serializes a command as the version byte followed by the ABI
// encoding of its fields.
func EncodeCommand(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, ErrInvalidCommand
	}
	if !validUint256(cmd.ProposalID) {
		return nil, fmt.Errorf("%w: proposal id out of range", ErrInvalidCommand)
	}
	if !validUint256(cmd.Value) {
		return nil, fmt.Errorf("%w: value out of range", ErrInvalidCommand)
	}
	calldata := cmd.Calldata
	if calldata == nil {
		calldata = []byte{}
	}
	body, err := commandArguments.Pack(cmd.ProposalID, cmd.Target, cmd.Value, calldata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return append([]byte{CommandVersion}, body...), nil
}

// DecodeCommand parses a payload produced by EncodeCommand. Anything that does
// not re-encode to the exact same bytes is rejected.
func DecodeCommand(payload []byte) (*Command, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if payload[0] != CommandVersion {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownVersion, payload[0])
	}
	body := payload[1:]

	values, err := commandArguments.Unpack(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != len(commandArguments) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedPayload, len(commandArguments), len(values))
	}
	id, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: proposal id", ErrMalformedPayload)
	}
	target, ok := values[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: target", ErrMalformedPayload)
	}
	value, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: value", ErrMalformedPayload)
	}
	calldata, ok := values[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: calldata", ErrMalformedPayload)
	}
	cmd := &Command{
		ProposalID: id,
		Target:     target,
		Value:      value,
		Calldata:   common.CopyBytes(calldata),
	}

	// Trailing bytes, dirty padding and overlapping offsets all survive Unpack.
	canonical, err := commandArguments.Pack(cmd.ProposalID, cmd.Target, cmd.Value, calldata)
	if err != nil || !bytes.Equal(canonical, body) {
		return nil, ErrNonCanonical
	}
	return cmd, nil
}
