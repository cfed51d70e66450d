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
	"maps"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mccoysc/xchain-governance/message"
)

// MockLedger is a mock implementation for testing
type MockLedger struct {
	block    uint64
	balances map[common.Address]*big.Int
}

func NewMockLedger() *MockLedger {
	return &MockLedger{
		block:    1,
		balances: make(map[common.Address]*big.Int),
	}
}

func (m *MockLedger) BlockNumber() uint64 { return m.block }

func (m *MockLedger) Mine(n uint64) { m.block += n }

func (m *MockLedger) Fund(addr common.Address, amount int64) {
	m.balances[addr] = new(big.Int).Add(m.Balance(addr), big.NewInt(amount))
}

func (m *MockLedger) Balance(addr common.Address) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (m *MockLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if m.Balance(from).Cmp(amount) < 0 {
		return errors.New("mock: insufficient balance")
	}
	m.balances[from] = new(big.Int).Sub(m.Balance(from), amount)
	m.balances[to] = new(big.Int).Add(m.Balance(to), amount)
	return nil
}

func (m *MockLedger) Atomic(fn func() error) error {
	saved := maps.Clone(m.balances)
	if err := fn(); err != nil {
		m.balances = saved
		return err
	}
	return nil
}

// sentMessage is a message accepted by MockRelayGateway
type sentMessage struct {
	sender  common.Address
	dst     message.ChainID
	dstAddr common.Address
	payload []byte
	value   *big.Int
}

// MockRelayGateway is a mock implementation for testing
type MockRelayGateway struct {
	ledger     *MockLedger
	feeAccount common.Address
	quote      *big.Int
	sendErr    error
	onSend     func()
	sent       []sentMessage
}

func NewMockRelayGateway(ledger *MockLedger, quote int64) *MockRelayGateway {
	return &MockRelayGateway{
		ledger:     ledger,
		feeAccount: common.HexToAddress("0xfee0000000000000000000000000000000000fee"),
		quote:      big.NewInt(quote),
	}
}

func (m *MockRelayGateway) QuoteDeliveryCost(dst message.ChainID, gasLimit uint64) (*big.Int, error) {
	return new(big.Int).Set(m.quote), nil
}

func (m *MockRelayGateway) Send(sender common.Address, dst message.ChainID, dstAddr common.Address, payload []byte, value *big.Int, gasLimit uint64) (uint64, error) {
	if m.onSend != nil {
		m.onSend()
	}
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	if err := m.ledger.Transfer(sender, m.feeAccount, value); err != nil {
		return 0, err
	}
	m.sent = append(m.sent, sentMessage{sender: sender, dst: dst, dstAddr: dstAddr, payload: payload, value: value})
	return uint64(len(m.sent)), nil
}
