// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "errors"

var (
	ErrClosed           = errors.New("vm closed")
	ErrDuplicateTx      = errors.New("duplicate transaction")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownTarget    = errors.New("action does not target a counter")
	ErrTooManyTxs       = errors.New("too many transactions")
)
