// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/state"
)

// Rules are fixed for the life of a chain.
type Rules interface {
	// ChainID protects against replaying a transaction on another chain.
	ChainID() ids.ID

	// ProgramID namespaces every address derived on this chain.
	ProgramID() codec.Address
}

type Action interface {
	codec.Typed

	// StateKeys is a full enumeration of all database keys that could be touched during execution
	// of an [Action]. This is used to prefetch state and to scope the view the action runs in.
	//
	// All keys specified must be suffixed with the number of chunks that could ever be read from that
	// key (formatted as a big-endian uint16). This is used to automatically calculate storage usage.
	StateKeys(actor codec.Address) state.Keys

	// Execute actually runs the [Action]. Any state changes that the [Action] performs should
	// be done here.
	//
	// If any keys are touched during [Execute] that are not specified in [StateKeys], the transaction
	// will revert. An error leaves no state changes behind.
	Execute(
		ctx context.Context,
		r Rules,
		mu state.Mutable,
		timestamp int64,
		actor codec.Address,
		txID ids.ID,
	) (output []byte, err error)

	// Size is the number of bytes it takes to represent this [Action]. This is used to preallocate
	// memory during encoding.
	Size() int

	// Marshal encodes an [Action] as bytes.
	Marshal(p *codec.Packer)
}

type Auth interface {
	codec.Typed

	// Verify returns an error if the signature over [msg] is invalid.
	Verify(ctx context.Context, msg []byte) error

	// Actor is the principal an action runs as.
	Actor() codec.Address

	// Size is the number of bytes it takes to represent this [Auth]. This is used to preallocate
	// memory during encoding.
	Size() int

	// Marshal encodes an [Auth] as bytes.
	Marshal(p *codec.Packer)
}

// AuthBatchVerifier verifies many signatures of one [Auth] type at once.
type AuthBatchVerifier interface {
	Add([]byte, Auth) func() error
	Done() []func() error
}

type AuthFactory interface {
	// Sign is used by helpers, auth object should store internally to be ready for marshaling
	Sign(msg []byte) (Auth, error)
}
