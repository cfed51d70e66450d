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

package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mccoysc/xchain-governance/genesis"
	"github.com/mccoysc/xchain-governance/internal/config"
	"github.com/mccoysc/xchain-governance/receiver"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML or YAML network configuration file",
		EnvVars: []string{"XGOV_CONFIG"},
	}
	targetFlag = &cli.StringFlag{
		Name:  "target",
		Usage: "Recipient of the treasury payment",
		Value: "0x000000000000000000000000000000000000bEEF",
	}
	valueFlag = &cli.StringFlag{
		Name:  "value",
		Usage: "Treasury payment in wei",
		Value: "1000000000000000000",
	}
	mintFlag = &cli.StringFlag{
		Name:  "mint",
		Usage: "Voting tokens minted to the proposer",
		Value: "10000000000000000000",
	}
	tipFlag = &cli.StringFlag{
		Name:  "tip",
		Usage: "Fee paid on top of the delivery quote, refunded on finalize",
		Value: "0",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Maximum time to wait for the relayed delivery",
		Value: 10 * time.Second,
	}
)

var simulateCommand = &cli.Command{
	Name:  "simulate",
	Usage: "Run a proposal from creation to execution on the custody chain",
	Flags: []cli.Flag{configFlag, targetFlag, valueFlag, mintFlag, tipFlag, timeoutFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.Load(ctx.String(configFlag.Name))
		if err != nil {
			return err
		}
		bootstrap, err := cfg.Bootstrap()
		if err != nil {
			return err
		}
		net, err := genesis.Bootstrap(bootstrap)
		if err != nil {
			return err
		}
		sc, err := newScenario(ctx, net)
		if err != nil {
			return err
		}
		runCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration(timeoutFlag.Name))
		defer cancel()
		return sc.run(runCtx)
	},
}

// scenario drives a single proposal through the bootstrapped network.
type scenario struct {
	net    *genesis.Network
	target common.Address
	value  *big.Int
	mint   *big.Int
	tip    *big.Int
}

func newScenario(ctx *cli.Context, net *genesis.Network) (*scenario, error) {
	target := ctx.String(targetFlag.Name)
	if !common.IsHexAddress(target) {
		return nil, fmt.Errorf("invalid target %q", target)
	}
	sc := &scenario{net: net, target: common.HexToAddress(target)}
	for _, f := range []struct {
		flag *cli.StringFlag
		dst  **big.Int
	}{{valueFlag, &sc.value}, {mintFlag, &sc.mint}, {tipFlag, &sc.tip}} {
		v, ok := math.ParseBig256(ctx.String(f.flag.Name))
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid --%s %q", f.flag.Name, ctx.String(f.flag.Name))
		}
		*f.dst = v
	}
	return sc, nil
}

// run starts the relayer next to the governance driver and stops it once the
// command has been executed on the custody chain.
func (sc *scenario) run(ctx context.Context) error {
	executed := make(chan receiver.CommandExecutedEvent, 1)
	sub := sc.net.Receiver.SubscribeCommandExecuted(executed)
	defer sub.Unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	relayCtx, stopRelay := context.WithCancel(gctx)
	defer stopRelay()

	g.Go(func() error {
		return sc.net.Relayer.Run(relayCtx)
	})
	g.Go(func() error {
		defer stopRelay()
		if err := sc.govern(); err != nil {
			return err
		}
		select {
		case ev := <-executed:
			return sc.report(gctx, ev)
		case <-gctx.Done():
			return fmt.Errorf("waiting for delivery: %w", gctx.Err())
		}
	})
	return g.Wait()
}

// govern mints, delegates, proposes, votes and finalizes on the governance chain.
func (sc *scenario) govern() error {
	var (
		net      = sc.net
		proposer = net.Config.GovernanceDeployer
		ledger   = net.GovernanceLedger
		gov      = net.Governance
	)
	if err := net.Token.Mint(proposer, proposer, sc.mint); err != nil {
		return err
	}
	if err := net.Token.Delegate(proposer, proposer); err != nil {
		return err
	}
	ledger.Mine(1)

	id, err := gov.Propose(proposer, sc.target, sc.value, nil, "pay "+sc.target.Hex())
	if err != nil {
		return err
	}
	cfg := net.Voter.Config()
	ledger.Mine(cfg.VotingDelay)
	if err := gov.Vote(proposer, id, true); err != nil {
		return err
	}
	ledger.Mine(cfg.VotingPeriod)

	quote, err := net.Relayer.QuoteDeliveryCost(cfg.DestinationChain, cfg.GasLimit)
	if err != nil {
		return err
	}
	before := ledger.Balance(proposer)
	out, err := gov.Finalize(proposer, id, new(big.Int).Add(quote, sc.tip))
	if err != nil {
		return err
	}
	if !out.Passed {
		return fmt.Errorf("proposal %d defeated", id)
	}
	spent := new(big.Int).Sub(before, ledger.Balance(proposer))
	log.Info("Simulate: proposal dispatched", "id", id, "quote", quote, "refund", out.Refund, "spent", spent, "sequence", out.Sequence)
	return nil
}

// report prints the delivery outcome and checks that a replay is rejected.
func (sc *scenario) report(ctx context.Context, ev receiver.CommandExecutedEvent) error {
	if !ev.Success {
		return fmt.Errorf("command execution failed: %s", ev.Reason)
	}
	err := sc.net.Relayer.Redeliver(ctx, ev.DeliveryID)
	if !errors.Is(err, receiver.ErrAlreadyProcessed) {
		return fmt.Errorf("replay of %s was not rejected: %v", ev.DeliveryID.Hex(), err)
	}
	state, err := sc.net.Governance.State(ev.ProposalID.Uint64())
	if err != nil {
		return err
	}
	fmt.Printf("delivery:  %s\n", ev.DeliveryID.Hex())
	fmt.Printf("proposal:  %v (%s)\n", ev.ProposalID, state)
	fmt.Printf("target:    %s balance %v\n", ev.Target.Hex(), sc.net.CustodyLedger.Balance(ev.Target))
	fmt.Printf("treasury:  %s balance %v\n", sc.net.Treasury.Address().Hex(), sc.net.Treasury.Balance())
	fmt.Printf("relayer:   %s balance %v\n", sc.net.Relayer.Address().Hex(), sc.net.GovernanceLedger.Balance(sc.net.Relayer.Address()))
	return nil
}
