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
)

// GovernanceContract is the governance chain entry point. It is a facade
// that combines the voting power ledger and the proposal engine.
type GovernanceContract struct {
	token *Token
	voter *Voter
}

// NewGovernanceContract creates a new governance contract instance
func NewGovernanceContract(token *Token, voter *Voter) *GovernanceContract {
	return &GovernanceContract{
		token: token,
		voter: voter,
	}
}

// Token returns the voting power ledger
func (gc *GovernanceContract) Token() *Token {
	return gc.token
}

// Voter returns the proposal engine
func (gc *GovernanceContract) Voter() *Voter {
	return gc.voter
}

// VotingPower returns the current voting power of an account
func (gc *GovernanceContract) VotingPower(account common.Address) *big.Int {
	return gc.token.GetVotes(account)
}

// Propose creates a new governance proposal
func (gc *GovernanceContract) Propose(proposer, target common.Address, value *big.Int, calldata []byte, description string) (uint64, error) {
	return gc.voter.CreateProposal(proposer, target, value, calldata, description)
}

// Vote casts a vote on a proposal
func (gc *GovernanceContract) Vote(voter common.Address, id uint64, support bool) error {
	return gc.voter.CastVote(voter, id, support)
}

// Finalize tallies a proposal and dispatches it when passed
func (gc *GovernanceContract) Finalize(caller common.Address, id uint64, fee *big.Int) (*Outcome, error) {
	return gc.voter.Finalize(caller, id, fee)
}

// State returns the current state of a proposal
func (gc *GovernanceContract) State(id uint64) (ProposalState, error) {
	return gc.voter.State(id)
}
