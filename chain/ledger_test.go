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

package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mccoysc/xchain-governance/message"
)

var errBoom = errors.New("boom")

// recordingContract 记录调用并按需失败
type recordingContract struct {
	calls []*CallContext
	input [][]byte
	fail  bool
	store func(ctx *CallContext)
}

func (c *recordingContract) Call(ctx *CallContext, input []byte) error {
	c.calls = append(c.calls, ctx)
	c.input = append(c.input, input)
	if c.store != nil {
		c.store(ctx)
	}
	if c.fail {
		return errBoom
	}
	return nil
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger("test", message.ChainSepolia)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	return l
}

func TestLedgerTransfer(t *testing.T) {
	l := newTestLedger(t)
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")

	if err := l.Fund(alice, big.NewInt(100)); err != nil {
		t.Fatalf("Failed to fund: %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("Failed to transfer: %v", err)
	}
	if got := l.Balance(alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("Expected alice balance 60, got %v", got)
	}
	if got := l.Balance(bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("Expected bob balance 40, got %v", got)
	}

	err := l.Transfer(bob, alice, big.NewInt(41))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedgerMine(t *testing.T) {
	l := newTestLedger(t)
	if l.BlockNumber() != 1 {
		t.Fatalf("Expected genesis block 1, got %d", l.BlockNumber())
	}
	if n := l.Mine(5); n != 6 {
		t.Errorf("Expected block 6, got %d", n)
	}
	if l.ChainID() != message.ChainSepolia || l.Name() != "test" {
		t.Errorf("Unexpected ledger identity %s/%s", l.Name(), l.ChainID())
	}
}

func TestLedgerAtomicRevert(t *testing.T) {
	l := newTestLedger(t)
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")
	contract := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l.Fund(alice, big.NewInt(10))

	store := NewSlotStore(l, contract)
	err := l.Atomic(func() error {
		if err := l.Transfer(alice, bob, big.NewInt(5)); err != nil {
			return err
		}
		store.SetFlag([]byte("seen"), []byte{1})
		store.SetAddress([]byte("owner"), bob)

		// An inner failure only rolls back its own changes.
		inner := l.Atomic(func() error {
			l.Transfer(alice, bob, big.NewInt(5))
			return errBoom
		})
		if !errors.Is(inner, errBoom) {
			t.Errorf("Expected inner error, got %v", inner)
		}
		if got := l.Balance(alice); got.Cmp(big.NewInt(5)) != 0 {
			t.Errorf("Expected inner revert to restore 5, got %v", got)
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Expected errBoom, got %v", err)
	}
	if got := l.Balance(alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("Expected alice balance restored to 10, got %v", got)
	}
	if got := l.Balance(bob); got.Sign() != 0 {
		t.Errorf("Expected bob balance 0, got %v", got)
	}
	if store.HasFlag([]byte("seen"), []byte{1}) {
		t.Error("Expected flag to be reverted")
	}
	if store.GetAddress([]byte("owner")) != (common.Address{}) {
		t.Error("Expected address slot to be reverted")
	}
}

func TestLedgerCall(t *testing.T) {
	l := newTestLedger(t)
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	eoa := common.HexToAddress("0x4444444444444444444444444444444444444444")
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l.Fund(alice, big.NewInt(10))

	c := &recordingContract{}
	if err := l.Deploy(addr, c); err != nil {
		t.Fatalf("Failed to deploy: %v", err)
	}
	if err := l.Deploy(addr, c); !errors.Is(err, ErrContractExists) {
		t.Errorf("Expected ErrContractExists, got %v", err)
	}
	if !l.IsContract(addr) || l.IsContract(eoa) {
		t.Error("Unexpected contract registry state")
	}

	if err := l.Call(alice, addr, big.NewInt(3), []byte{0xab}); err != nil {
		t.Fatalf("Failed to call contract: %v", err)
	}
	if len(c.calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(c.calls))
	}
	ctx := c.calls[0]
	if ctx.Caller != alice || ctx.Self != addr || ctx.Value.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("Unexpected call context %+v", ctx)
	}
	if l.Balance(addr).Cmp(big.NewInt(3)) != 0 {
		t.Errorf("Expected contract balance 3, got %v", l.Balance(addr))
	}

	// Plain accounts ignore input.
	if err := l.Call(alice, eoa, big.NewInt(2), []byte{0x01}); err != nil {
		t.Fatalf("Failed to call EOA: %v", err)
	}
	if l.Balance(eoa).Cmp(big.NewInt(2)) != 0 {
		t.Errorf("Expected EOA balance 2, got %v", l.Balance(eoa))
	}
}

func TestLedgerCallRevertsOnContractFailure(t *testing.T) {
	l := newTestLedger(t)
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l.Fund(alice, big.NewInt(10))

	c := &recordingContract{fail: true}
	c.store = func(ctx *CallContext) {
		NewSlotStore(ctx.Ledger, ctx.Self).SetUint64([]byte("counter"), 42)
	}
	l.Deploy(addr, c)

	if err := l.Deposit(alice, addr, big.NewInt(4)); !errors.Is(err, errBoom) {
		t.Fatalf("Expected errBoom, got %v", err)
	}
	if len(c.input) != 1 || len(c.input[0]) != 0 {
		t.Errorf("Expected one empty-input call, got %v", c.input)
	}
	if l.Balance(alice).Cmp(big.NewInt(10)) != 0 {
		t.Errorf("Expected caller balance unchanged, got %v", l.Balance(alice))
	}
	if l.Balance(addr).Sign() != 0 {
		t.Errorf("Expected contract balance 0, got %v", l.Balance(addr))
	}
	if got := NewSlotStore(l, addr).GetUint64([]byte("counter")); got != 0 {
		t.Errorf("Expected counter slot reverted, got %d", got)
	}
}
