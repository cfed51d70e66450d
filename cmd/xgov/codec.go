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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/urfave/cli/v2"

	"github.com/mccoysc/xchain-governance/genesis"
	"github.com/mccoysc/xchain-governance/internal/config"
	"github.com/mccoysc/xchain-governance/message"
)

var encodeCommand = &cli.Command{
	Name:  "encode",
	Usage: "Encode a treasury command payload",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "proposal", Usage: "Proposal id", Required: true},
		&cli.StringFlag{Name: "target", Usage: "Call target", Required: true},
		&cli.StringFlag{Name: "value", Usage: "Native value in wei", Value: "0"},
		&cli.StringFlag{Name: "calldata", Usage: "Hex encoded call data", Value: "0x"},
	},
	Action: func(ctx *cli.Context) error {
		target := ctx.String("target")
		if !common.IsHexAddress(target) {
			return fmt.Errorf("invalid target %q", target)
		}
		value, ok := math.ParseBig256(ctx.String("value"))
		if !ok {
			return fmt.Errorf("invalid value %q", ctx.String("value"))
		}
		calldata, err := hexutil.Decode(ctx.String("calldata"))
		if err != nil {
			return fmt.Errorf("invalid calldata: %w", err)
		}
		payload, err := message.EncodeCommand(message.NewCommand(ctx.Uint64("proposal"), common.HexToAddress(target), value, calldata))
		if err != nil {
			return err
		}
		fmt.Println(hexutil.Encode(payload))
		return nil
	},
}

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "Decode a treasury command payload",
	ArgsUsage: "<hex payload>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected one payload argument, got %d", ctx.NArg())
		}
		payload, err := hexutil.Decode(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		cmd, err := message.DecodeCommand(payload)
		if err != nil {
			return err
		}
		fmt.Printf("proposal: %v\n", cmd.ProposalID)
		fmt.Printf("target:   %s\n", cmd.Target.Hex())
		fmt.Printf("value:    %v\n", cmd.Value)
		fmt.Printf("calldata: %s\n", hexutil.Encode(cmd.Calldata))
		return nil
	},
}

var addressesCommand = &cli.Command{
	Name:  "addresses",
	Usage: "Print the contract addresses a configuration deploys to",
	Flags: []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := config.Load(ctx.String(configFlag.Name))
		if err != nil {
			return err
		}
		bootstrap, err := cfg.Bootstrap()
		if err != nil {
			return err
		}
		addrs := genesis.PredictAddresses(bootstrap.GovernanceDeployer, bootstrap.CustodyDeployer)
		fmt.Printf("%s (%s):\n", bootstrap.GovernanceChain, "governance")
		fmt.Printf("  token:    %s\n", addrs.Token.Hex())
		fmt.Printf("  voter:    %s\n", addrs.Voter.Hex())
		fmt.Printf("%s (%s):\n", bootstrap.CustodyChain, "custody")
		fmt.Printf("  treasury: %s\n", addrs.Treasury.Hex())
		fmt.Printf("  receiver: %s\n", addrs.Receiver.Hex())
		return nil
	},
}
