// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/storage"
)

type VM interface {
	Logger() logging.Logger
	Tracer() trace.Tracer
	Rules() chain.Rules
	Registry() chain.Registry
	Submit(ctx context.Context, txs []*chain.Transaction) ([]*chain.Result, []error)
	SubmitBytes(ctx context.Context, raw []byte) ([]*chain.Transaction, []*chain.Result, []error, error)
	DeriveCounter(authority codec.Address) (codec.Address, uint8, error)
	GetCounter(ctx context.Context, addr codec.Address) (*storage.Counter, bool, error)
	GetTransaction(ctx context.Context, txID ids.ID) (bool, int64, bool, uint32, uint64, error)
}
