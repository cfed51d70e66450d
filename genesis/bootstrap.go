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

package genesis

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mccoysc/xchain-governance/chain"
	"github.com/mccoysc/xchain-governance/governance"
	"github.com/mccoysc/xchain-governance/message"
	"github.com/mccoysc/xchain-governance/receiver"
	"github.com/mccoysc/xchain-governance/relay"
	"github.com/mccoysc/xchain-governance/treasury"
)

// ErrInvalidConfig is returned for an unusable bootstrap configuration.
var ErrInvalidConfig = errors.New("invalid bootstrap configuration")

// BootstrapConfig holds the two-chain network bootstrap configuration
type BootstrapConfig struct {
	// GovernanceChain hosts the token and the proposal engine
	GovernanceChain message.ChainID

	// CustodyChain hosts the treasury and the receiver
	CustodyChain message.ChainID

	// GovernanceDeployer deploys the token and the proposal engine
	GovernanceDeployer common.Address

	// CustodyDeployer deploys the treasury and the receiver and owns the treasury
	CustodyDeployer common.Address

	// DeployerFunds is the genesis allocation of each deployer
	DeployerFunds *big.Int

	// TreasuryFunds is deposited into the treasury after deployment
	TreasuryFunds *big.Int

	// TokenName and TokenSymbol name the voting token
	TokenName   string
	TokenSymbol string

	// Voter configures the proposal engine. The destination is filled in.
	Voter *governance.VoterConfig

	// Relay configures the simulated relay network
	Relay *relay.Config
}

// DefaultBootstrapConfig returns the default bootstrap configuration
func DefaultBootstrapConfig() *BootstrapConfig {
	ether := big.NewInt(1_000_000_000_000_000_000)
	return &BootstrapConfig{
		GovernanceChain:    message.ChainBaseSepolia,
		CustodyChain:       message.ChainSepolia,
		GovernanceDeployer: common.HexToAddress("0xdE91000000000000000000000000000000000B0B"),
		CustodyDeployer:    common.HexToAddress("0xdE91000000000000000000000000000000000A0A"),
		DeployerFunds:      new(big.Int).Mul(big.NewInt(100), ether), // 100 ether
		TreasuryFunds:      new(big.Int).Mul(big.NewInt(10), ether),  // 10 ether
		TokenName:          "DAO Token",
		TokenSymbol:        "DAO",
		Voter:              governance.DefaultVoterConfig(),
		Relay:              relay.DefaultConfig(),
	}
}

// Validate checks the configuration
func (c *BootstrapConfig) Validate() error {
	if c.GovernanceChain == c.CustodyChain {
		return fmt.Errorf("%w: governance and custody chain must differ", ErrInvalidConfig)
	}
	if c.GovernanceDeployer == (common.Address{}) || c.CustodyDeployer == (common.Address{}) {
		return fmt.Errorf("%w: missing deployer", ErrInvalidConfig)
	}
	if c.DeployerFunds == nil || c.DeployerFunds.Sign() < 0 {
		return fmt.Errorf("%w: deployer funds must be non-negative", ErrInvalidConfig)
	}
	if c.TreasuryFunds == nil || c.TreasuryFunds.Sign() < 0 || c.TreasuryFunds.Cmp(c.DeployerFunds) > 0 {
		return fmt.Errorf("%w: treasury funds must be covered by the deployer", ErrInvalidConfig)
	}
	if c.Voter == nil || c.Relay == nil {
		return fmt.Errorf("%w: missing voter or relay section", ErrInvalidConfig)
	}
	return c.Relay.Validate()
}

// Network is a bootstrapped governance deployment across two ledgers
type Network struct {
	Config    *BootstrapConfig
	Addresses Addresses

	GovernanceLedger *chain.Ledger
	CustodyLedger    *chain.Ledger
	Relayer          *relay.Relayer

	Token      *governance.Token
	Voter      *governance.Voter
	Governance *governance.GovernanceContract
	Treasury   *treasury.Treasury
	Receiver   *receiver.Validator
}

// Bootstrap creates both ledgers and deploys the contracts in order: token and
// proposal engine on the governance chain, then treasury and receiver on the
// custody chain. The treasury executor is set to the receiver and the relay
// route to the receiver is registered.
func Bootstrap(config *BootstrapConfig) (*Network, error) {
	if config == nil {
		config = DefaultBootstrapConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	addrs := PredictAddresses(config.GovernanceDeployer, config.CustodyDeployer)

	// Ledgers
	govLedger, err := chain.NewLedger("governance", config.GovernanceChain)
	if err != nil {
		return nil, err
	}
	custodyLedger, err := chain.NewLedger("custody", config.CustodyChain)
	if err != nil {
		return nil, err
	}
	if err := govLedger.Fund(config.GovernanceDeployer, config.DeployerFunds); err != nil {
		return nil, err
	}
	if err := custodyLedger.Fund(config.CustodyDeployer, config.DeployerFunds); err != nil {
		return nil, err
	}

	relayer, err := relay.NewRelayer(config.Relay, govLedger)
	if err != nil {
		return nil, err
	}

	// Governance chain
	token := governance.NewToken(config.TokenName, config.TokenSymbol, govLedger, config.GovernanceDeployer)
	voterConfig := *config.Voter
	voterConfig.DestinationChain = config.CustodyChain
	voterConfig.DestinationAddress = addrs.Receiver
	voter, err := governance.NewVoter(&voterConfig, addrs.Voter, govLedger, token, relayer)
	if err != nil {
		return nil, err
	}

	// Custody chain
	tr, err := treasury.New(custodyLedger, addrs.Treasury, config.CustodyDeployer)
	if err != nil {
		return nil, err
	}
	trust := receiver.TrustConfig{
		Relayer:     relayer.Address(),
		SourceChain: config.GovernanceChain,
		Emitter:     message.ToEmitter(addrs.Voter),
	}
	rcv, err := receiver.New(trust, addrs.Receiver, custodyLedger, tr)
	if err != nil {
		return nil, err
	}
	if err := tr.SetExecutor(config.CustodyDeployer, rcv.Address()); err != nil {
		return nil, err
	}
	if err := custodyLedger.Deposit(config.CustodyDeployer, tr.Address(), config.TreasuryFunds); err != nil {
		return nil, fmt.Errorf("failed to fund treasury: %w", err)
	}
	relayer.Register(config.CustodyChain, rcv.Address(), rcv)

	log.Info("Bootstrap: network ready",
		"token", addrs.Token, "voter", addrs.Voter,
		"treasury", addrs.Treasury, "receiver", addrs.Receiver,
		"relayer", relayer.Address())

	return &Network{
		Config:           config,
		Addresses:        addrs,
		GovernanceLedger: govLedger,
		CustodyLedger:    custodyLedger,
		Relayer:          relayer,
		Token:            token,
		Voter:            voter,
		Governance:       governance.NewGovernanceContract(token, voter),
		Treasury:         tr,
		Receiver:         rcv,
	}, nil
}
