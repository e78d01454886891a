// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
)

var _ chain.Action = (*Initialize)(nil)

// Initialize creates the counter owned by the actor with a count of zero.
type Initialize struct {
	// Counter must be the address derived from the actor.
	Counter codec.Address `json:"counter"`
}

func (*Initialize) GetTypeID() uint8 {
	return InitializeID
}

func (i *Initialize) StateKeys(codec.Address) state.Keys {
	return state.Keys{
		string(storage.CounterKey(i.Counter)): state.Allocate | state.Write,
	}
}

// Execute outputs the bump seed of the counter address.
func (i *Initialize) Execute(
	ctx context.Context,
	r chain.Rules,
	mu state.Mutable,
	_ int64,
	actor codec.Address,
	_ ids.ID,
) ([]byte, error) {
	addr, bump, err := derive.NewCounterDeriver(r.ProgramID()).Derive(actor[:])
	if err != nil {
		return nil, err
	}
	if addr != i.Counter {
		return nil, precondition(ErrInvalidCounterAddress)
	}
	_, exists, err := storage.GetCounter(ctx, mu, i.Counter)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, precondition(ErrAlreadyInitialized)
	}
	counter := &storage.Counter{
		Authority: ed25519.PublicKey(actor),
		Count:     0,
	}
	if err := storage.SetCounter(ctx, mu, i.Counter, counter); err != nil {
		return nil, err
	}
	return []byte{bump}, nil
}

func (*Initialize) Size() int {
	return codec.AddressLen
}

func (i *Initialize) Marshal(p *codec.Packer) {
	p.PackAddress(i.Counter)
}

func UnmarshalInitialize(p *codec.Packer) (chain.Action, error) {
	var initialize Initialize
	p.UnpackAddress(&initialize.Counter)
	return &initialize, p.Err()
}
