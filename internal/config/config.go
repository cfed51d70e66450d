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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mccoysc/xchain-governance/genesis"
	"github.com/mccoysc/xchain-governance/governance"
	"github.com/mccoysc/xchain-governance/message"
	"github.com/mccoysc/xchain-governance/relay"
)

// Config errors
var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalidValue      = errors.New("invalid config value")
)

// Config is the on-disk configuration of a simulated deployment. Values are
// layered with the following priority: environment > file > defaults.
type Config struct {
	Chains   ChainsConfig   `toml:"chains" yaml:"chains"`
	Deployer DeployerConfig `toml:"deployer" yaml:"deployer"`
	Token    TokenConfig    `toml:"token" yaml:"token"`
	Voter    VoterConfig    `toml:"voter" yaml:"voter"`
	Relay    RelayConfig    `toml:"relay" yaml:"relay"`
}

// ChainsConfig holds the relay chain ids of both ledgers
type ChainsConfig struct {
	Governance uint16 `toml:"governance" yaml:"governance"` // 治理链
	Custody    uint16 `toml:"custody" yaml:"custody"`       // 托管链
}

// DeployerConfig holds deployer accounts and genesis funds
type DeployerConfig struct {
	Governance    string `toml:"governance" yaml:"governance"`         // 治理链部署者地址
	Custody       string `toml:"custody" yaml:"custody"`               // 托管链部署者地址（金库所有者）
	Funds         string `toml:"funds" yaml:"funds"`                   // 部署者初始余额（wei）
	TreasuryFunds string `toml:"treasury_funds" yaml:"treasury_funds"` // 金库初始存款（wei）
}

// TokenConfig names the voting token
type TokenConfig struct {
	Name   string `toml:"name" yaml:"name"`
	Symbol string `toml:"symbol" yaml:"symbol"`
}

// VoterConfig holds the proposal engine parameters
type VoterConfig struct {
	VotingDelay          uint64 `toml:"voting_delay" yaml:"voting_delay"`
	VotingPeriod         uint64 `toml:"voting_period" yaml:"voting_period"`
	QuorumNumerator      uint64 `toml:"quorum_numerator" yaml:"quorum_numerator"`
	QuorumDenominator    uint64 `toml:"quorum_denominator" yaml:"quorum_denominator"`
	ThresholdNumerator   uint64 `toml:"threshold_numerator" yaml:"threshold_numerator"`
	ThresholdDenominator uint64 `toml:"threshold_denominator" yaml:"threshold_denominator"`
	GasLimit             uint64 `toml:"gas_limit" yaml:"gas_limit"`
}

// RelayConfig holds the simulated relay parameters
type RelayConfig struct {
	Address      string `toml:"address" yaml:"address"`
	BaseFee      string `toml:"base_fee" yaml:"base_fee"`
	GasPrice     string `toml:"gas_price" yaml:"gas_price"`
	MaxGasLimit  uint64 `toml:"max_gas_limit" yaml:"max_gas_limit"`
	PollInterval string `toml:"poll_interval" yaml:"poll_interval"`
}

// Default returns the configuration matching genesis.DefaultBootstrapConfig
func Default() *Config {
	b := genesis.DefaultBootstrapConfig()
	return &Config{
		Chains: ChainsConfig{
			Governance: uint16(b.GovernanceChain),
			Custody:    uint16(b.CustodyChain),
		},
		Deployer: DeployerConfig{
			Governance:    b.GovernanceDeployer.Hex(),
			Custody:       b.CustodyDeployer.Hex(),
			Funds:         b.DeployerFunds.String(),
			TreasuryFunds: b.TreasuryFunds.String(),
		},
		Token: TokenConfig{
			Name:   b.TokenName,
			Symbol: b.TokenSymbol,
		},
		Voter: VoterConfig{
			VotingDelay:          b.Voter.VotingDelay,
			VotingPeriod:         b.Voter.VotingPeriod,
			QuorumNumerator:      b.Voter.QuorumNumerator,
			QuorumDenominator:    b.Voter.QuorumDenominator,
			ThresholdNumerator:   b.Voter.ThresholdNumerator,
			ThresholdDenominator: b.Voter.ThresholdDenominator,
			GasLimit:             b.Voter.GasLimit,
		},
		Relay: RelayConfig{
			Address:      b.Relay.Address.Hex(),
			BaseFee:      b.Relay.BaseFee.String(),
			GasPrice:     b.Relay.GasPrice.String(),
			MaxGasLimit:  b.Relay.MaxGasLimit,
			PollInterval: b.Relay.PollInterval.String(),
		},
	}
}

// Load reads a TOML or YAML file over the defaults and applies environment
// overrides. An empty path yields the defaults with overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// applyEnv overrides file values with XGOV_* environment variables
func (c *Config) applyEnv() error {
	c.Deployer.Governance = getEnvOrDefault("XGOV_GOVERNANCE_DEPLOYER", c.Deployer.Governance)
	c.Deployer.Custody = getEnvOrDefault("XGOV_CUSTODY_DEPLOYER", c.Deployer.Custody)
	c.Relay.Address = getEnvOrDefault("XGOV_RELAY_ADDRESS", c.Relay.Address)
	c.Relay.BaseFee = getEnvOrDefault("XGOV_RELAY_BASE_FEE", c.Relay.BaseFee)
	c.Relay.GasPrice = getEnvOrDefault("XGOV_RELAY_GAS_PRICE", c.Relay.GasPrice)

	var err error
	if c.Voter.VotingDelay, err = getEnvUint("XGOV_VOTING_DELAY", c.Voter.VotingDelay); err != nil {
		return err
	}
	if c.Voter.VotingPeriod, err = getEnvUint("XGOV_VOTING_PERIOD", c.Voter.VotingPeriod); err != nil {
		return err
	}
	return nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
	}
	return n, nil
}

// Bootstrap converts the configuration into a validated bootstrap configuration
func (c *Config) Bootstrap() (*genesis.BootstrapConfig, error) {
	govDeployer, err := parseAddress("deployer.governance", c.Deployer.Governance)
	if err != nil {
		return nil, err
	}
	custodyDeployer, err := parseAddress("deployer.custody", c.Deployer.Custody)
	if err != nil {
		return nil, err
	}
	relayAddr, err := parseAddress("relay.address", c.Relay.Address)
	if err != nil {
		return nil, err
	}
	funds, err := parseAmount("deployer.funds", c.Deployer.Funds)
	if err != nil {
		return nil, err
	}
	treasuryFunds, err := parseAmount("deployer.treasury_funds", c.Deployer.TreasuryFunds)
	if err != nil {
		return nil, err
	}
	baseFee, err := parseAmount("relay.base_fee", c.Relay.BaseFee)
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseAmount("relay.gas_price", c.Relay.GasPrice)
	if err != nil {
		return nil, err
	}
	interval, err := time.ParseDuration(c.Relay.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: relay.poll_interval: %v", ErrInvalidValue, err)
	}

	b := &genesis.BootstrapConfig{
		GovernanceChain:    message.ChainID(c.Chains.Governance),
		CustodyChain:       message.ChainID(c.Chains.Custody),
		GovernanceDeployer: govDeployer,
		CustodyDeployer:    custodyDeployer,
		DeployerFunds:      funds,
		TreasuryFunds:      treasuryFunds,
		TokenName:          c.Token.Name,
		TokenSymbol:        c.Token.Symbol,
		Voter: &governance.VoterConfig{
			VotingDelay:          c.Voter.VotingDelay,
			VotingPeriod:         c.Voter.VotingPeriod,
			QuorumNumerator:      c.Voter.QuorumNumerator,
			QuorumDenominator:    c.Voter.QuorumDenominator,
			ThresholdNumerator:   c.Voter.ThresholdNumerator,
			ThresholdDenominator: c.Voter.ThresholdDenominator,
			DestinationChain:     message.ChainID(c.Chains.Custody),
			GasLimit:             c.Voter.GasLimit,
		},
		Relay: &relay.Config{
			Address:      relayAddr,
			BaseFee:      baseFee,
			GasPrice:     gasPrice,
			MaxGasLimit:  c.Relay.MaxGasLimit,
			PollInterval: interval,
		},
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	// The destination is only known after address prediction.
	voter := *b.Voter
	voter.DestinationAddress = genesis.PredictReceiverAddress(custodyDeployer)
	if err := voter.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s=%q is not an address", ErrInvalidValue, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := math.ParseBig256(value)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s=%q is not an amount", ErrInvalidValue, field, value)
	}
	return amount, nil
}
