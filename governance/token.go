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
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// maxSupply bounds the total supply so checkpointed power fits in 208 bits.
var maxSupply = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 208), big.NewInt(1))

// Token is the voting power ledger: a mintable token whose holders delegate
// their balance to a voting-power holder. Every change of a holder's power is
// recorded as a checkpoint so that power can be queried at past blocks.
type Token struct {
	name   string
	symbol string
	blocks BlockSource
	roles  *AccessControl

	mu                sync.RWMutex
	balances          map[common.Address]*big.Int
	delegates         map[common.Address]common.Address
	checkpoints       map[common.Address][]Checkpoint
	totalSupply       *big.Int
	supplyCheckpoints []Checkpoint

	transferFeed      event.Feed
	delegateFeed      event.Feed
	delegateVotesFeed event.Feed

	log log.Logger
}

// NewToken creates a token. The admin account receives DefaultAdminRole and MinterRole.
func NewToken(name, symbol string, blocks BlockSource, admin common.Address) *Token {
	roles := NewAccessControl(admin)
	roles.grant(MinterRole, admin)

	return &Token{
		name:        name,
		symbol:      symbol,
		blocks:      blocks,
		roles:       roles,
		balances:    make(map[common.Address]*big.Int),
		delegates:   make(map[common.Address]common.Address),
		checkpoints: make(map[common.Address][]Checkpoint),
		totalSupply: new(big.Int),
		log:         log.New("token", symbol),
	}
}

// Name returns the token name
func (t *Token) Name() string { return t.name }

// Symbol returns the token symbol
func (t *Token) Symbol() string { return t.symbol }

// Roles returns the role registry guarding the token
func (t *Token) Roles() *AccessControl { return t.roles }

// pendingEvents collects events raised under the lock, sent once it is released.
type pendingEvents struct {
	transfers []TransferEvent
	delegates []DelegateChangedEvent
	votes     []DelegateVotesChangedEvent
}

func (t *Token) emit(ev *pendingEvents) {
	for _, e := range ev.transfers {
		t.transferFeed.Send(e)
	}
	for _, e := range ev.delegates {
		t.delegateFeed.Send(e)
	}
	for _, e := range ev.votes {
		t.delegateVotesFeed.Send(e)
	}
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// Mint creates amount tokens for account. The caller must hold MinterRole.
func (t *Token) Mint(caller, account common.Address, amount *big.Int) error {
	if !t.roles.HasRole(MinterRole, caller) {
		return fmt.Errorf("%w: %s is not a minter", ErrUnauthorized, caller.Hex())
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	supply := new(big.Int).Add(t.totalSupply, amount)
	if supply.Cmp(maxSupply) > 0 {
		t.mu.Unlock()
		return ErrSupplyOverflow
	}
	var ev pendingEvents
	block := t.blocks.BlockNumber()

	t.totalSupply = supply
	t.supplyCheckpoints = pushCheckpoint(t.supplyCheckpoints, block, supply)
	t.balances[account] = new(big.Int).Add(t.balanceOf(account), amount)
	t.moveVotingPower(&ev, block, common.Address{}, t.delegates[account], amount)
	ev.transfers = append(ev.transfers, TransferEvent{To: account, Value: new(big.Int).Set(amount)})
	t.mu.Unlock()

	t.log.Debug("Token: minted", "account", account, "amount", amount, "supply", supply)
	t.emit(&ev)
	return nil
}

// Burn destroys amount tokens held by account. Only the account itself may burn.
func (t *Token) Burn(caller, account common.Address, amount *big.Int) error {
	if caller != account {
		return fmt.Errorf("%w: %s cannot burn for %s", ErrUnauthorized, caller.Hex(), account.Hex())
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	balance := t.balanceOf(account)
	if balance.Cmp(amount) < 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientBalance, account.Hex(), balance, amount)
	}
	var ev pendingEvents
	block := t.blocks.BlockNumber()

	t.totalSupply = new(big.Int).Sub(t.totalSupply, amount)
	t.supplyCheckpoints = pushCheckpoint(t.supplyCheckpoints, block, t.totalSupply)
	t.balances[account] = new(big.Int).Sub(balance, amount)
	t.moveVotingPower(&ev, block, t.delegates[account], common.Address{}, amount)
	ev.transfers = append(ev.transfers, TransferEvent{From: account, Value: new(big.Int).Set(amount)})
	t.mu.Unlock()

	t.emit(&ev)
	return nil
}

// Transfer moves amount tokens from one account to another
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	balance := t.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	var ev pendingEvents
	block := t.blocks.BlockNumber()

	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	t.moveVotingPower(&ev, block, t.delegates[from], t.delegates[to], amount)
	ev.transfers = append(ev.transfers, TransferEvent{From: from, To: to, Value: new(big.Int).Set(amount)})
	t.mu.Unlock()

	t.emit(&ev)
	return nil
}

// Delegate assigns the voting power of account's whole balance to delegatee.
// Delegating to the zero address withdraws the power from any holder.
func (t *Token) Delegate(account, delegatee common.Address) error {
	t.mu.Lock()
	var ev pendingEvents
	block := t.blocks.BlockNumber()

	previous := t.delegates[account]
	if delegatee == (common.Address{}) {
		delete(t.delegates, account)
	} else {
		t.delegates[account] = delegatee
	}
	ev.delegates = append(ev.delegates, DelegateChangedEvent{
		Delegator:    account,
		FromDelegate: previous,
		ToDelegate:   delegatee,
	})
	t.moveVotingPower(&ev, block, previous, delegatee, t.balanceOf(account))
	t.mu.Unlock()

	t.log.Debug("Token: delegated", "account", account, "from", previous, "to", delegatee)
	t.emit(&ev)
	return nil
}

// Delegates returns the current delegate of account, the zero address if none
func (t *Token) Delegates(account common.Address) common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.delegates[account]
}

// BalanceOf returns the token balance of account
func (t *Token) BalanceOf(account common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return new(big.Int).Set(t.balanceOf(account))
}

// TotalSupply returns the current token supply
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return new(big.Int).Set(t.totalSupply)
}

// GetVotes returns the current voting power of account
func (t *Token) GetVotes(account common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return latest(t.checkpoints[account])
}

// GetPastVotes returns the voting power of account at the end of a mined block
func (t *Token) GetPastVotes(account common.Address, block uint64) (*big.Int, error) {
	if current := t.blocks.BlockNumber(); block >= current {
		return nil, fmt.Errorf("%w: requested %d, current %d", ErrInvalidBlock, block, current)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	return upperLookup(t.checkpoints[account], block), nil
}

// GetPastTotalSupply returns the token supply at the end of a mined block
func (t *Token) GetPastTotalSupply(block uint64) (*big.Int, error) {
	if current := t.blocks.BlockNumber(); block >= current {
		return nil, fmt.Errorf("%w: requested %d, current %d", ErrInvalidBlock, block, current)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	return upperLookup(t.supplyCheckpoints, block), nil
}

// NumCheckpoints returns the number of checkpoints recorded for account
func (t *Token) NumCheckpoints(account common.Address) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.checkpoints[account])
}

// Checkpoints returns the checkpoint of account at position pos
func (t *Token) Checkpoints(account common.Address, pos int) (Checkpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ckpts := t.checkpoints[account]
	if pos < 0 || pos >= len(ckpts) {
		return Checkpoint{}, false
	}
	return Checkpoint{Block: ckpts[pos].Block, Votes: new(big.Int).Set(ckpts[pos].Votes)}, true
}

// SubscribeTransfer subscribes to balance movements
func (t *Token) SubscribeTransfer(ch chan<- TransferEvent) event.Subscription {
	return t.transferFeed.Subscribe(ch)
}

// SubscribeDelegateChanged subscribes to delegation changes
func (t *Token) SubscribeDelegateChanged(ch chan<- DelegateChangedEvent) event.Subscription {
	return t.delegateFeed.Subscribe(ch)
}

// SubscribeDelegateVotesChanged subscribes to voting power changes
func (t *Token) SubscribeDelegateVotesChanged(ch chan<- DelegateVotesChangedEvent) event.Subscription {
	return t.delegateVotesFeed.Subscribe(ch)
}

func (t *Token) balanceOf(account common.Address) *big.Int {
	if balance, ok := t.balances[account]; ok {
		return balance
	}
	return new(big.Int)
}

// moveVotingPower shifts amount of power from src to dst. The zero address
// stands for "no holder" on either side.
func (t *Token) moveVotingPower(ev *pendingEvents, block uint64, src, dst common.Address, amount *big.Int) {
	if src == dst || amount.Sign() == 0 {
		return
	}
	if src != (common.Address{}) {
		prev := latest(t.checkpoints[src])
		next := new(big.Int).Sub(prev, amount)
		t.checkpoints[src] = pushCheckpoint(t.checkpoints[src], block, next)
		ev.votes = append(ev.votes, DelegateVotesChangedEvent{Delegate: src, PreviousVotes: prev, NewVotes: next})
	}
	if dst != (common.Address{}) {
		prev := latest(t.checkpoints[dst])
		next := new(big.Int).Add(prev, amount)
		t.checkpoints[dst] = pushCheckpoint(t.checkpoints[dst], block, next)
		ev.votes = append(ev.votes, DelegateVotesChangedEvent{Delegate: dst, PreviousVotes: prev, NewVotes: next})
	}
}

// pushCheckpoint appends a checkpoint, or replaces the tail if it was written
// in the same block.
func pushCheckpoint(ckpts []Checkpoint, block uint64, votes *big.Int) []Checkpoint {
	value := new(big.Int).Set(votes)
	if n := len(ckpts); n > 0 && ckpts[n-1].Block == block {
		ckpts[n-1] = Checkpoint{Block: block, Votes: value}
		return ckpts
	}
	return append(ckpts, Checkpoint{Block: block, Votes: value})
}

func latest(ckpts []Checkpoint) *big.Int {
	if len(ckpts) == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(ckpts[len(ckpts)-1].Votes)
}

// upperLookup returns the value of the last checkpoint at or before block.
func upperLookup(ckpts []Checkpoint, block uint64) *big.Int {
	i := sort.Search(len(ckpts), func(i int) bool {
		return ckpts[i].Block > block
	})
	if i == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(ckpts[i-1].Votes)
}
