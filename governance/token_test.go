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
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testAdmin = common.HexToAddress("0xad00000000000000000000000000000000000000")
	testAlice = common.HexToAddress("0xa100000000000000000000000000000000000000")
	testBob   = common.HexToAddress("0xb000000000000000000000000000000000000000")
	testCarol = common.HexToAddress("0xc000000000000000000000000000000000000000")
)

func newTestToken(t *testing.T) (*Token, *MockLedger) {
	t.Helper()
	ledger := NewMockLedger()
	return NewToken("DAO Token", "DAO", ledger, testAdmin), ledger
}

func mustMint(t *testing.T, token *Token, account common.Address, amount int64) {
	t.Helper()
	if err := token.Mint(testAdmin, account, big.NewInt(amount)); err != nil {
		t.Fatalf("Failed to mint: %v", err)
	}
}

func expectPastVotes(t *testing.T, token *Token, account common.Address, block uint64, want int64) {
	t.Helper()
	got, err := token.GetPastVotes(account, block)
	if err != nil {
		t.Fatalf("GetPastVotes(%d) failed: %v", block, err)
	}
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Errorf("GetPastVotes(%s, %d) = %v, want %d", account.Hex(), block, got, want)
	}
}

func TestToken_MintRequiresMinterRole(t *testing.T) {
	token, _ := newTestToken(t)

	err := token.Mint(testAlice, testAlice, big.NewInt(10))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if !IsAuthorizationError(err) {
		t.Error("unauthorized mint should be an authorization error")
	}
	if token.TotalSupply().Sign() != 0 {
		t.Error("failed mint should not change supply")
	}

	if err := token.Roles().GrantRole(testAdmin, MinterRole, testAlice); err != nil {
		t.Fatalf("Failed to grant minter role: %v", err)
	}
	if err := token.Mint(testAlice, testBob, big.NewInt(10)); err != nil {
		t.Fatalf("Granted minter should mint: %v", err)
	}
	if token.BalanceOf(testBob).Cmp(big.NewInt(10)) != 0 {
		t.Errorf("Expected balance 10, got %v", token.BalanceOf(testBob))
	}
}

func TestToken_UndelegatedBalanceHasNoPower(t *testing.T) {
	token, ledger := newTestToken(t)

	mustMint(t, token, testAlice, 10)
	if token.GetVotes(testAlice).Sign() != 0 {
		t.Error("undelegated balance should carry no voting power")
	}
	if token.NumCheckpoints(testAlice) != 0 {
		t.Error("no checkpoint expected before delegation")
	}

	if err := token.Delegate(testAlice, testAlice); err != nil {
		t.Fatalf("Failed to delegate: %v", err)
	}
	if token.GetVotes(testAlice).Cmp(big.NewInt(10)) != 0 {
		t.Errorf("Expected 10 votes after self delegation, got %v", token.GetVotes(testAlice))
	}
	if token.Delegates(testAlice) != testAlice {
		t.Error("alice should be her own delegate")
	}

	ledger.Mine(1)
	expectPastVotes(t, token, testAlice, 1, 10)
}

func TestToken_HistoricalVotes(t *testing.T) {
	token, ledger := newTestToken(t)

	// block 1: alice 10, self delegated
	mustMint(t, token, testAlice, 10)
	token.Delegate(testAlice, testAlice)
	ledger.Mine(1)

	// block 2: alice sends 4 to bob, bob self delegates
	token.Delegate(testBob, testBob)
	if err := token.Transfer(testAlice, testBob, big.NewInt(4)); err != nil {
		t.Fatalf("Failed to transfer: %v", err)
	}
	ledger.Mine(2)

	// block 4: alice delegates to carol
	token.Delegate(testAlice, testCarol)
	ledger.Mine(1)

	// block 5: bob mints more
	mustMint(t, token, testBob, 5)
	ledger.Mine(1)

	expectPastVotes(t, token, testAlice, 0, 0)
	expectPastVotes(t, token, testAlice, 1, 10)
	expectPastVotes(t, token, testAlice, 2, 6)
	expectPastVotes(t, token, testAlice, 3, 6)
	expectPastVotes(t, token, testAlice, 4, 0)
	expectPastVotes(t, token, testCarol, 3, 0)
	expectPastVotes(t, token, testCarol, 4, 6)
	expectPastVotes(t, token, testBob, 1, 0)
	expectPastVotes(t, token, testBob, 2, 4)
	expectPastVotes(t, token, testBob, 5, 9)

	supply, err := token.GetPastTotalSupply(4)
	if err != nil || supply.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("Expected supply 10 at block 4, got %v (%v)", supply, err)
	}
	supply, _ = token.GetPastTotalSupply(5)
	if supply.Cmp(big.NewInt(15)) != 0 {
		t.Errorf("Expected supply 15 at block 5, got %v", supply)
	}

	// Checkpoints are strictly increasing
	for _, account := range []common.Address{testAlice, testBob, testCarol} {
		var last uint64
		for i := 0; i < token.NumCheckpoints(account); i++ {
			ckpt, ok := token.Checkpoints(account, i)
			if !ok {
				t.Fatalf("Missing checkpoint %d", i)
			}
			if i > 0 && ckpt.Block <= last {
				t.Errorf("Checkpoints of %s not strictly increasing: %d after %d", account.Hex(), ckpt.Block, last)
			}
			last = ckpt.Block
		}
	}
	if _, ok := token.Checkpoints(testAlice, 99); ok {
		t.Error("out of range checkpoint should not exist")
	}
}

func TestToken_SameBlockWritesReplaceTail(t *testing.T) {
	token, ledger := newTestToken(t)

	token.Delegate(testAlice, testAlice)
	mustMint(t, token, testAlice, 3)
	mustMint(t, token, testAlice, 4)
	if n := token.NumCheckpoints(testAlice); n != 1 {
		t.Fatalf("Expected one checkpoint for a single block, got %d", n)
	}
	ledger.Mine(1)
	mustMint(t, token, testAlice, 1)
	if n := token.NumCheckpoints(testAlice); n != 2 {
		t.Fatalf("Expected two checkpoints, got %d", n)
	}
	ledger.Mine(1)

	expectPastVotes(t, token, testAlice, 1, 7)
	expectPastVotes(t, token, testAlice, 2, 8)
}

func TestToken_PastQueriesMustBeMined(t *testing.T) {
	token, ledger := newTestToken(t)
	ledger.Mine(4)

	for _, block := range []uint64{5, 6, 1000} {
		if _, err := token.GetPastVotes(testAlice, block); !errors.Is(err, ErrInvalidBlock) {
			t.Errorf("GetPastVotes(%d): expected ErrInvalidBlock, got %v", block, err)
		}
		if _, err := token.GetPastTotalSupply(block); !errors.Is(err, ErrInvalidBlock) {
			t.Errorf("GetPastTotalSupply(%d): expected ErrInvalidBlock, got %v", block, err)
		}
	}
	if _, err := token.GetPastVotes(testAlice, 4); err != nil {
		t.Errorf("block 4 is mined, got %v", err)
	}
}

func TestToken_TransferInsufficientBalance(t *testing.T) {
	token, _ := newTestToken(t)
	mustMint(t, token, testAlice, 5)
	token.Delegate(testAlice, testAlice)

	err := token.Transfer(testAlice, testBob, big.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	if !IsResourceError(err) {
		t.Error("insufficient balance should be a resource error")
	}
	if token.BalanceOf(testAlice).Cmp(big.NewInt(5)) != 0 || token.GetVotes(testAlice).Cmp(big.NewInt(5)) != 0 {
		t.Error("failed transfer should not change balance or votes")
	}
}

func TestToken_Burn(t *testing.T) {
	token, _ := newTestToken(t)
	mustMint(t, token, testAlice, 5)
	token.Delegate(testAlice, testBob)

	if err := token.Burn(testBob, testAlice, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := token.Burn(testAlice, testAlice, big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
	if err := token.Burn(testAlice, testAlice, big.NewInt(2)); err != nil {
		t.Fatalf("Failed to burn: %v", err)
	}
	if token.TotalSupply().Cmp(big.NewInt(3)) != 0 {
		t.Errorf("Expected supply 3, got %v", token.TotalSupply())
	}
	if token.GetVotes(testBob).Cmp(big.NewInt(3)) != 0 {
		t.Errorf("Expected delegate votes 3, got %v", token.GetVotes(testBob))
	}
}

func TestToken_Events(t *testing.T) {
	token, _ := newTestToken(t)

	delegateCh := make(chan DelegateChangedEvent, 4)
	votesCh := make(chan DelegateVotesChangedEvent, 4)
	sub1 := token.SubscribeDelegateChanged(delegateCh)
	defer sub1.Unsubscribe()
	sub2 := token.SubscribeDelegateVotesChanged(votesCh)
	defer sub2.Unsubscribe()

	mustMint(t, token, testAlice, 7)
	token.Delegate(testAlice, testAlice)

	ev := <-delegateCh
	if ev.Delegator != testAlice || ev.FromDelegate != (common.Address{}) || ev.ToDelegate != testAlice {
		t.Errorf("Unexpected delegate event %+v", ev)
	}
	vev := <-votesCh
	if vev.Delegate != testAlice || vev.PreviousVotes.Sign() != 0 || vev.NewVotes.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("Unexpected votes event %+v", vev)
	}
}
