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

package relay

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidConfig is returned for an unusable relayer configuration.
var ErrInvalidConfig = errors.New("invalid relay configuration")

// Config holds the relayer configuration
type Config struct {
	Address      common.Address // 中继身份：源链收费地址，目标链调用者
	BaseFee      *big.Int       // 每条消息的固定费用
	GasPrice     *big.Int       // 目标链 gas 单价
	MaxGasLimit  uint64         // 单条消息允许的最大 gas
	PollInterval time.Duration  // 后台投递间隔
}

// DefaultConfig returns the default relayer configuration
func DefaultConfig() *Config {
	return &Config{
		Address:      common.HexToAddress("0x7B1bD7a6b4E61c2a123AC6BC2cbfC614437D0470"),
		BaseFee:      big.NewInt(1_000_000_000_000), // 0.000001 ether
		GasPrice:     big.NewInt(1_000_000_000),     // 1 gwei
		MaxGasLimit:  10_000_000,
		PollInterval: 500 * time.Millisecond,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: missing relayer address", ErrInvalidConfig)
	}
	if c.BaseFee == nil || c.BaseFee.Sign() < 0 {
		return fmt.Errorf("%w: base fee must be non-negative", ErrInvalidConfig)
	}
	if c.GasPrice == nil || c.GasPrice.Sign() < 0 {
		return fmt.Errorf("%w: gas price must be non-negative", ErrInvalidConfig)
	}
	if c.MaxGasLimit == 0 {
		return fmt.Errorf("%w: max gas limit must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	return nil
}
