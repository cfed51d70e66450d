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

package receiver

import "errors"

// Authorization errors
var (
	ErrUnauthorizedCaller  = errors.New("only the trusted relayer may deliver")
	ErrWrongSourceChain    = errors.New("message from wrong source chain")
	ErrUnauthorizedEmitter = errors.New("message from unauthorized emitter")
)

// State errors
var (
	ErrAlreadyProcessed = errors.New("delivery already processed")
)

// Execution errors
var (
	ErrExecutionFailed = errors.New("command execution failed")
)

// Configuration errors
var (
	ErrInvalidTrustConfig = errors.New("invalid trust configuration")
)

// IsAuthorizationError reports whether err rejected the delivery's identity facts.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorizedCaller) ||
		errors.Is(err, ErrWrongSourceChain) ||
		errors.Is(err, ErrUnauthorizedEmitter)
}

// IsStateError reports whether err rejected a duplicate delivery.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsExecutionError reports whether err is a failed command effect.
func IsExecutionError(err error) bool {
	return errors.Is(err, ErrExecutionFailed)
}
