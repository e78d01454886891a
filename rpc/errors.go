// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "errors"

var (
	ErrTxRejected        = errors.New("tx rejected")
	ErrTxNotFound        = errors.New("tx not found")
	ErrUnexpectedMessage = errors.New("unexpected message")
)
