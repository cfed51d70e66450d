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
	"fmt"
	"math"
	"math/big"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/mccoysc/xchain-governance/message"
)

var (
	proposalsCreatedCounter  = metrics.NewRegisteredCounter("governance/proposals/created", nil)
	votesCastCounter         = metrics.NewRegisteredCounter("governance/votes/cast", nil)
	proposalsDefeatedCounter = metrics.NewRegisteredCounter("governance/proposals/defeated", nil)
	proposalsSentCounter     = metrics.NewRegisteredCounter("governance/proposals/sent", nil)
)

// Voter is the proposal engine. Proposals are voted on with the voting power
// recorded at their snapshot block and, once passed, are sent as a command
// through the relay to the destination chain.
type Voter struct {
	config  *VoterConfig
	address common.Address
	ledger  Ledger
	votes   VotesSource
	relay   RelayGateway

	mu        sync.Mutex
	proposals map[uint64]*Proposal
	count     uint64

	createdFeed   event.Feed
	voteFeed      event.Feed
	finalizedFeed event.Feed

	log log.Logger
}

// NewVoter creates a proposal engine living at address on the given ledger
func NewVoter(config *VoterConfig, address common.Address, ledger Ledger, votes VotesSource, relay RelayGateway) (*Voter, error) {
	if config == nil {
		config = DefaultVoterConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	return &Voter{
		config:    &cfg,
		address:   address,
		ledger:    ledger,
		votes:     votes,
		relay:     relay,
		proposals: make(map[uint64]*Proposal),
		log:       log.New("module", "voter", "address", address),
	}, nil
}

// Address returns the address of the engine, the emitter of its messages
func (v *Voter) Address() common.Address { return v.address }

// Config returns a copy of the engine configuration
func (v *Voter) Config() VoterConfig { return *v.config }

// CreateProposal creates a proposal to send value and calldata to target on
// the destination chain. Any account may propose.
func (v *Voter) CreateProposal(proposer, target common.Address, value *big.Int, calldata []byte, description string) (uint64, error) {
	if value == nil {
		value = new(big.Int)
	}
	if err := validAmount(value); err != nil {
		return 0, err
	}
	if _, overflow := uint256.FromBig(value); overflow {
		return 0, fmt.Errorf("%w: value %v exceeds 256 bits", ErrInvalidAmount, value)
	}

	v.mu.Lock()
	snapshot := v.ledger.BlockNumber()
	if snapshot > math.MaxUint64-v.config.VotingDelay-v.config.VotingPeriod {
		v.mu.Unlock()
		return 0, fmt.Errorf("%w: schedule from block %d overflows", ErrInvalidBlock, snapshot)
	}
	v.count++
	proposal := &Proposal{
		ID:            v.count,
		Description:   description,
		Proposer:      proposer,
		SnapshotBlock: snapshot,
		StartBlock:    snapshot + v.config.VotingDelay,
		EndBlock:      snapshot + v.config.VotingDelay + v.config.VotingPeriod,
		ForVotes:      new(big.Int),
		AgainstVotes:  new(big.Int),
		Target:        target,
		Value:         new(big.Int).Set(value),
		Calldata:      common.CopyBytes(calldata),
		voters:        mapset.NewThreadUnsafeSet[common.Address](),
	}
	v.proposals[proposal.ID] = proposal
	ev := ProposalCreatedEvent{
		ProposalID:    proposal.ID,
		Proposer:      proposer,
		Target:        target,
		Value:         new(big.Int).Set(value),
		SnapshotBlock: proposal.SnapshotBlock,
		StartBlock:    proposal.StartBlock,
		EndBlock:      proposal.EndBlock,
		Description:   description,
	}
	v.mu.Unlock()

	proposalsCreatedCounter.Inc(1)
	v.log.Info("Voter: proposal created", "id", ev.ProposalID, "proposer", proposer, "start", ev.StartBlock, "end", ev.EndBlock)
	v.createdFeed.Send(ev)
	return ev.ProposalID, nil
}

// CastVote records the vote of voter, weighted by its voting power at the
// proposal's snapshot block. Votes with zero weight are accepted.
func (v *Voter) CastVote(voter common.Address, id uint64, support bool) error {
	v.mu.Lock()
	proposal, exists := v.proposals[id]
	if !exists {
		v.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}

	// Check voting window
	current := v.ledger.BlockNumber()
	if current < proposal.StartBlock || current >= proposal.EndBlock {
		v.mu.Unlock()
		return fmt.Errorf("%w: block %d outside [%d, %d)", ErrNotActive, current, proposal.StartBlock, proposal.EndBlock)
	}

	// Check double voting
	if proposal.voters.Contains(voter) {
		v.mu.Unlock()
		return ErrAlreadyVoted
	}

	weight, err := v.votes.GetPastVotes(voter, proposal.SnapshotBlock)
	if err != nil {
		v.mu.Unlock()
		return err
	}

	// Record vote
	proposal.voters.Add(voter)
	if support {
		proposal.ForVotes.Add(proposal.ForVotes, weight)
	} else {
		proposal.AgainstVotes.Add(proposal.AgainstVotes, weight)
	}
	v.mu.Unlock()

	votesCastCounter.Inc(1)
	v.log.Debug("Voter: vote cast", "id", id, "voter", voter, "support", support, "weight", weight)
	v.voteFeed.Send(VoteCastEvent{ProposalID: id, Voter: voter, Support: support, Weight: weight})
	return nil
}

// Finalize tallies an expired proposal. A defeated proposal is recorded and
// returned without error. A passed proposal is marked executed and its
// command is sent through the relay, paid from fee; whatever fee exceeds the
// relay quote is refunded to caller. Either all of it happens or nothing does.
func (v *Voter) Finalize(caller common.Address, id uint64, fee *big.Int) (*Outcome, error) {
	if fee == nil {
		fee = new(big.Int)
	}
	if err := validAmount(fee); err != nil {
		return nil, err
	}

	v.mu.Lock()
	proposal, exists := v.proposals[id]
	if !exists {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}

	// 1. Check voting has ended
	current := v.ledger.BlockNumber()
	if current < proposal.EndBlock {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: block %d, ends at %d", ErrNotExpired, current, proposal.EndBlock)
	}

	// 2. Check not yet sent
	if proposal.Executed {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrAlreadyFinalized, id)
	}

	// 3. Tally
	quorum, err := v.quorum(proposal.SnapshotBlock)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	outcome := &Outcome{
		ProposalID: id,
		Quorum:     quorum,
		Fee:        new(big.Int),
		Refund:     new(big.Int),
	}
	if !v.passed(proposal, quorum) {
		first := !proposal.Defeated
		proposal.Defeated = true
		v.mu.Unlock()

		if first {
			proposalsDefeatedCounter.Inc(1)
			v.log.Info("Voter: proposal defeated", "id", id, "for", proposal.ForVotes, "against", proposal.AgainstVotes, "quorum", quorum)
			v.finalizedFeed.Send(ProposalFinalizedEvent{ProposalID: id, Fee: new(big.Int)})
		}
		return outcome, nil
	}

	// 4. Price the delivery
	quote, err := v.relay.QuoteDeliveryCost(v.config.DestinationChain, v.config.GasLimit)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	if fee.Cmp(quote) < 0 {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: supplied %v, quote %v", ErrInsufficientFee, fee, quote)
	}
	payload, err := message.EncodeCommand(&message.Command{
		ProposalID: new(big.Int).SetUint64(id),
		Target:     proposal.Target,
		Value:      proposal.Value,
		Calldata:   proposal.Calldata,
	})
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}

	// 5. Mark executed, collect the fee, refund the excess and dispatch.
	// The engine lock is released while dispatching; the executed flag
	// rejects any other finalization of the proposal meanwhile.
	refund := new(big.Int).Sub(fee, quote)
	proposal.Executed = true
	v.mu.Unlock()

	var sequence uint64
	err = v.ledger.Atomic(func() error {
		if err := v.ledger.Transfer(caller, v.address, fee); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
		}
		if err := v.ledger.Transfer(v.address, caller, refund); err != nil {
			return err
		}
		seq, err := v.relay.Send(v.address, v.config.DestinationChain, v.config.DestinationAddress, payload, quote, v.config.GasLimit)
		if err != nil {
			return err
		}
		sequence = seq
		return nil
	})
	v.mu.Lock()
	if err != nil {
		proposal.Executed = false
		v.mu.Unlock()
		return nil, err
	}
	proposal.Sequence = sequence
	v.mu.Unlock()

	outcome.Passed = true
	outcome.Fee = quote
	outcome.Refund = refund
	outcome.Sequence = sequence

	proposalsSentCounter.Inc(1)
	v.log.Info("Voter: proposal sent", "id", id, "sequence", sequence, "fee", quote, "refund", refund)
	v.finalizedFeed.Send(ProposalFinalizedEvent{ProposalID: id, Passed: true, Sequence: sequence, Fee: new(big.Int).Set(quote)})
	return outcome, nil
}

// quorum returns the minimum for-votes a proposal snapshotted at block needs.
func (v *Voter) quorum(block uint64) (*big.Int, error) {
	supply, err := v.votes.GetPastTotalSupply(block)
	if err != nil {
		return nil, err
	}
	quorum := new(big.Int).Mul(supply, new(big.Int).SetUint64(v.config.QuorumNumerator))
	return quorum.Div(quorum, new(big.Int).SetUint64(v.config.QuorumDenominator)), nil
}

// passed checks quorum and the pass threshold over the cast votes.
func (v *Voter) passed(p *Proposal, quorum *big.Int) bool {
	if p.ForVotes.Cmp(quorum) < 0 {
		return false
	}
	cast := new(big.Int).Add(p.ForVotes, p.AgainstVotes)
	lhs := new(big.Int).Mul(p.ForVotes, new(big.Int).SetUint64(v.config.ThresholdDenominator))
	rhs := cast.Mul(cast, new(big.Int).SetUint64(v.config.ThresholdNumerator))
	return lhs.Cmp(rhs) > 0
}

// State returns the lifecycle state of a proposal at the current block
func (v *Voter) State(id uint64) (ProposalState, error) {
	return v.StateAt(id, v.ledger.BlockNumber())
}

// StateAt returns the lifecycle state a proposal has at block
func (v *Voter) StateAt(id uint64, block uint64) (ProposalState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	proposal, exists := v.proposals[id]
	if !exists {
		return 0, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	switch {
	case proposal.Executed:
		return ProposalExecuted, nil
	case proposal.Defeated:
		return ProposalDefeated, nil
	case block < proposal.StartBlock:
		return ProposalPending, nil
	case block < proposal.EndBlock:
		return ProposalActive, nil
	default:
		return ProposalExpired, nil
	}
}

// HasVoted checks if account voted on a proposal
func (v *Voter) HasVoted(id uint64, account common.Address) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	proposal, exists := v.proposals[id]
	return exists && proposal.voters.Contains(account)
}

// Proposal returns a copy of a proposal
func (v *Voter) Proposal(id uint64) (*Proposal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	proposal, exists := v.proposals[id]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	return proposal.copy(), nil
}

// ProposalCount returns the number of proposals created so far
func (v *Voter) ProposalCount() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.count
}

// SubscribeProposalCreated subscribes to new proposals
func (v *Voter) SubscribeProposalCreated(ch chan<- ProposalCreatedEvent) event.Subscription {
	return v.createdFeed.Subscribe(ch)
}

// SubscribeVoteCast subscribes to accepted votes
func (v *Voter) SubscribeVoteCast(ch chan<- VoteCastEvent) event.Subscription {
	return v.voteFeed.Subscribe(ch)
}

// SubscribeProposalFinalized subscribes to finalized proposals
func (v *Voter) SubscribeProposalFinalized(ch chan<- ProposalFinalizedEvent) event.Subscription {
	return v.finalizedFeed.Subscribe(ch)
}
