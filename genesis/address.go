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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Deployment nonces of the deployer account on each chain.
const (
	tokenNonce    = 0 // governance chain
	voterNonce    = 1 // governance chain
	treasuryNonce = 0 // custody chain
	receiverNonce = 1 // custody chain
)

// CalculateContractAddress deterministically calculates a contract address
// based on the deployer address and nonce using CREATE opcode rules
func CalculateContractAddress(deployer common.Address, nonce uint64) common.Address {
	// CREATE address calculation: keccak256(rlp([deployer, nonce]))
	data, _ := rlp.EncodeToBytes([]interface{}{deployer, nonce})
	hash := crypto.Keccak256Hash(data)

	var addr common.Address
	copy(addr[:], hash[12:])
	return addr
}

// PredictTokenAddress predicts the voting token address on the governance chain
func PredictTokenAddress(deployer common.Address) common.Address {
	return CalculateContractAddress(deployer, tokenNonce)
}

// PredictVoterAddress predicts the proposal engine address on the governance
// chain. It is the emitter the receiver trusts.
func PredictVoterAddress(deployer common.Address) common.Address {
	return CalculateContractAddress(deployer, voterNonce)
}

// PredictTreasuryAddress predicts the treasury address on the custody chain
func PredictTreasuryAddress(deployer common.Address) common.Address {
	return CalculateContractAddress(deployer, treasuryNonce)
}

// PredictReceiverAddress predicts the receiver address on the custody chain.
// The proposal engine needs it before the receiver is deployed.
func PredictReceiverAddress(deployer common.Address) common.Address {
	return CalculateContractAddress(deployer, receiverNonce)
}

// Addresses lists every contract of a deployment
type Addresses struct {
	Token    common.Address // 投票代币（治理链）
	Voter    common.Address // 提案引擎（治理链）
	Treasury common.Address // 金库（托管链）
	Receiver common.Address // 消息验证（托管链）
}

// PredictAddresses predicts a full deployment made by one deployer account
// on each chain
func PredictAddresses(governanceDeployer, custodyDeployer common.Address) Addresses {
	return Addresses{
		Token:    PredictTokenAddress(governanceDeployer),
		Voter:    PredictVoterAddress(governanceDeployer),
		Treasury: PredictTreasuryAddress(custodyDeployer),
		Receiver: PredictReceiverAddress(custodyDeployer),
	}
}
