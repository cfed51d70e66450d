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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mccoysc/xchain-governance/message"
)

// ProposalState represents the lifecycle state of a proposal
type ProposalState uint8

const (
	ProposalPending  ProposalState = 0x00 // 等待投票开始
	ProposalActive   ProposalState = 0x01 // 投票中
	ProposalExpired  ProposalState = 0x02 // 投票结束，尚未结算
	ProposalDefeated ProposalState = 0x03 // 已结算，未通过
	ProposalExecuted ProposalState = 0x04 // 已结算，命令已发送
)

// String implements fmt.Stringer.
func (s ProposalState) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalActive:
		return "active"
	case ProposalExpired:
		return "expired"
	case ProposalDefeated:
		return "defeated"
	case ProposalExecuted:
		return "executed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Finalized reports whether the state is terminal.
func (s ProposalState) Finalized() bool {
	return s == ProposalDefeated || s == ProposalExecuted
}

// Checkpoint records the voting power of an account from a block onwards
type Checkpoint struct {
	Block uint64   // 区块号
	Votes *big.Int // 投票权
}

// Proposal represents a governance proposal
type Proposal struct {
	ID            uint64         // 提案 ID
	Description   string         // 描述
	Proposer      common.Address // 提案者
	SnapshotBlock uint64         // 投票权快照区块
	StartBlock    uint64         // 投票开始区块
	EndBlock      uint64         // 投票截止区块（不含）
	ForVotes      *big.Int       // 赞成票
	AgainstVotes  *big.Int       // 反对票
	Target        common.Address // 目标地址
	Value         *big.Int       // 转账金额
	Calldata      []byte         // 调用数据
	Executed      bool           // 已发送
	Defeated      bool           // 结算未通过
	Sequence      uint64         // 中继序列号

	voters mapset.Set[common.Address]
}

// copy returns a deep copy of the proposal.
func (p *Proposal) copy() *Proposal {
	cpy := *p
	cpy.ForVotes = new(big.Int).Set(p.ForVotes)
	cpy.AgainstVotes = new(big.Int).Set(p.AgainstVotes)
	cpy.Value = new(big.Int).Set(p.Value)
	cpy.Calldata = common.CopyBytes(p.Calldata)
	cpy.voters = p.voters.Clone()
	return &cpy
}

// Voters returns the accounts that voted on the proposal.
func (p *Proposal) Voters() []common.Address {
	if p.voters == nil {
		return nil
	}
	return sortedAddresses(p.voters)
}

// Outcome is the result of finalizing a proposal
type Outcome struct {
	ProposalID uint64
	Passed     bool
	Quorum     *big.Int // 快照时的法定票数
	Fee        *big.Int // 实际支付给中继的费用
	Refund     *big.Int // 退还给调用者的多余费用
	Sequence   uint64   // 中继序列号（仅在通过时有效）
}

// VoterConfig holds the configuration of the proposal engine
type VoterConfig struct {
	VotingDelay          uint64          // 创建到开始投票的区块数
	VotingPeriod         uint64          // 投票持续区块数
	QuorumNumerator      uint64          // 法定票数比例分子
	QuorumDenominator    uint64          // 法定票数比例分母
	ThresholdNumerator   uint64          // 通过阈值分子
	ThresholdDenominator uint64          // 通过阈值分母
	DestinationChain     message.ChainID // 目标链
	DestinationAddress   common.Address  // 目标链上的消息验证合约
	GasLimit             uint64          // 目标链执行的 gas 预算
}

// DefaultVoterConfig returns the default proposal engine configuration
func DefaultVoterConfig() *VoterConfig {
	return &VoterConfig{
		VotingDelay:          1,
		VotingPeriod:         10,
		QuorumNumerator:      1,   // 1%
		QuorumDenominator:    100, // of total supply at snapshot
		ThresholdNumerator:   1,   // strictly more than
		ThresholdDenominator: 2,   // half of the cast votes
		DestinationChain:     message.ChainSepolia,
		GasLimit:             500_000,
	}
}

// Validate checks the configuration
func (c *VoterConfig) Validate() error {
	if c.VotingDelay == 0 {
		return fmt.Errorf("%w: voting delay must be at least one block", ErrInvalidConfig)
	}
	if c.VotingPeriod == 0 {
		return fmt.Errorf("%w: voting period must be at least one block", ErrInvalidConfig)
	}
	if c.VotingDelay > math.MaxUint64-c.VotingPeriod {
		return fmt.Errorf("%w: voting delay %d plus period %d overflows", ErrInvalidConfig, c.VotingDelay, c.VotingPeriod)
	}
	if c.QuorumDenominator == 0 || c.QuorumNumerator > c.QuorumDenominator {
		return fmt.Errorf("%w: quorum fraction %d/%d", ErrInvalidConfig, c.QuorumNumerator, c.QuorumDenominator)
	}
	if c.ThresholdDenominator == 0 || c.ThresholdNumerator >= c.ThresholdDenominator {
		return fmt.Errorf("%w: threshold fraction %d/%d", ErrInvalidConfig, c.ThresholdNumerator, c.ThresholdDenominator)
	}
	if c.DestinationAddress == (common.Address{}) {
		return fmt.Errorf("%w: missing destination address", ErrInvalidConfig)
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("%w: gas limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// TransferEvent is emitted when token balances move. From is zero for mints
// and To is zero for burns.
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// DelegateChangedEvent is emitted when an account changes its delegate
type DelegateChangedEvent struct {
	Delegator    common.Address
	FromDelegate common.Address
	ToDelegate   common.Address
}

// DelegateVotesChangedEvent is emitted when the voting power of a delegate changes
type DelegateVotesChangedEvent struct {
	Delegate      common.Address
	PreviousVotes *big.Int
	NewVotes      *big.Int
}

// ProposalCreatedEvent is emitted when a proposal is created
type ProposalCreatedEvent struct {
	ProposalID    uint64
	Proposer      common.Address
	Target        common.Address
	Value         *big.Int
	SnapshotBlock uint64
	StartBlock    uint64
	EndBlock      uint64
	Description   string
}

// VoteCastEvent is emitted for every accepted vote
type VoteCastEvent struct {
	ProposalID uint64
	Voter      common.Address
	Support    bool
	Weight     *big.Int
}

// ProposalFinalizedEvent is emitted once a proposal reaches a terminal state
type ProposalFinalizedEvent struct {
	ProposalID uint64
	Passed     bool
	Sequence   uint64
	Fee        *big.Int
}
