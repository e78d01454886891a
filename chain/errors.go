// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "errors"

var (
	// Parsing
	ErrInvalidObject = errors.New("invalid object")
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownAuth   = errors.New("unknown auth")

	// Verify
	ErrInvalidChainID   = errors.New("invalid chain id")
	ErrInvalidKeyValue  = errors.New("invalid key or value")
	ErrAuthNotSet       = errors.New("auth not set")
	ErrMismatchedDigest = errors.New("transaction digest does not match signed bytes")

	// Execution
	ErrPreconditionFailed error = NewCodedError(ErrorCodePrecondition, "precondition failed")
)
