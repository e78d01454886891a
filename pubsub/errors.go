// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pubsub

import "errors"

var (
	ErrClosed           = errors.New("connection closed")
	ErrTooManyMessages  = errors.New("too many messages")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrInvalidBatchSize = errors.New("invalid batch size")
)
