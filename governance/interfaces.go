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
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mccoysc/xchain-governance/message"
)

// BlockSource provides the current block index of the governance ledger
type BlockSource interface {
	// BlockNumber returns the current block index
	BlockNumber() uint64
}

// VotesSource resolves historical voting power
type VotesSource interface {
	// GetPastVotes returns the voting power of an account at a mined block
	GetPastVotes(account common.Address, block uint64) (*big.Int, error)

	// GetPastTotalSupply returns the token supply at a mined block
	GetPastTotalSupply(block uint64) (*big.Int, error)
}

// Ledger is the part of the governance chain the proposal engine moves fees on
type Ledger interface {
	BlockSource

	// Transfer moves native value between two accounts
	Transfer(from, to common.Address, amount *big.Int) error

	// Atomic runs fn and reverts every ledger change if it fails
	Atomic(fn func() error) error
}

// RelayGateway dispatches cross-chain messages
type RelayGateway interface {
	// QuoteDeliveryCost returns the value that must be attached to Send
	QuoteDeliveryCost(dst message.ChainID, gasLimit uint64) (*big.Int, error)

	// Send pays value from sender and queues payload for delivery to dstAddr.
	// It may call back into the proposal engine.
	Send(sender common.Address, dst message.ChainID, dstAddr common.Address, payload []byte, value *big.Int, gasLimit uint64) (uint64, error)
}
