// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"context"
	"io"

	"github.com/ava-labs/avalanchego/database"
)

type Immutable interface {
	GetValue(ctx context.Context, key []byte) (value []byte, err error)
}

type Mutable interface {
	Immutable

	Insert(ctx context.Context, key []byte, value []byte) error
	Remove(ctx context.Context, key []byte) error
}

// Database is the durable store changes are committed into. Every write
// reaches it through a [database.Batch] so a commit is all-or-nothing.
type Database interface {
	database.KeyValueReader
	database.KeyValueWriterDeleter
	database.Batcher
	io.Closer
}
