// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import "github.com/ava-labs/countervm/chain"

// Note: Registry will error during initialization if a duplicate ID is assigned. We explicitly assign IDs to avoid accidental remapping.
const (
	InitializeID uint8 = 0
	IncrementID  uint8 = 1
)

const (
	ErrorCodePrecondition = chain.ErrorCodePrecondition

	// Custom error codes start at 6000
	ErrorCodeOverflow uint32 = 6000
)
