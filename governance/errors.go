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

import "errors"

// Authorization errors
var (
	ErrUnauthorized = errors.New("caller is missing the required role")
)

// State errors
var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrNotActive        = errors.New("proposal is not active")
	ErrAlreadyVoted     = errors.New("voter has already voted on this proposal")
	ErrNotExpired       = errors.New("voting period has not ended")
	ErrAlreadyFinalized = errors.New("proposal already finalized")
	ErrInvalidBlock     = errors.New("block is not yet mined")
)

// Resource errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFee     = errors.New("fee below quoted delivery cost")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSupplyOverflow      = errors.New("total supply exceeds voting power range")
)

// Configuration errors
var (
	ErrInvalidConfig = errors.New("invalid governance configuration")
)

// IsAuthorizationError reports whether err is fatal to the caller's identity
// and cannot succeed on retry.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsStateError reports whether err signals a timing or lifecycle mismatch.
func IsStateError(err error) bool {
	for _, target := range []error{ErrProposalNotFound, ErrNotActive, ErrAlreadyVoted, ErrNotExpired, ErrAlreadyFinalized, ErrInvalidBlock} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsResourceError reports whether err requires the caller to supply corrected input.
func IsResourceError(err error) bool {
	for _, target := range []error{ErrInsufficientBalance, ErrInsufficientFee, ErrInvalidAmount, ErrSupplyOverflow} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
