// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"errors"
	"fmt"

	"github.com/ava-labs/countervm/chain"
)

var (
	ErrOverflow error = chain.NewCodedError(ErrorCodeOverflow, "counter overflow")

	ErrUnauthorized          = errors.New("actor is not the counter authority")
	ErrCounterNotFound       = errors.New("counter not initialized")
	ErrAlreadyInitialized    = errors.New("counter already initialized")
	ErrInvalidCounterAddress = errors.New("counter address not derived from actor")
)

// precondition reports [err] through [chain.ErrPreconditionFailed].
func precondition(err error) error {
	return fmt.Errorf("%w: %w", chain.ErrPreconditionFailed, err)
}
