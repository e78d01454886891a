// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package derive

import "errors"

var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)
