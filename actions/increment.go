// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	smath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
)

var _ chain.Action = (*Increment)(nil)

// Increment adds one to a counter owned by the actor.
type Increment struct {
	Counter codec.Address `json:"counter"`
}

func (*Increment) GetTypeID() uint8 {
	return IncrementID
}

func (i *Increment) StateKeys(codec.Address) state.Keys {
	return state.Keys{
		string(storage.CounterKey(i.Counter)): state.Write,
	}
}

// Execute outputs the new count as a big-endian uint64.
//
// The authority is checked before the address, and both before the
// arithmetic.
func (i *Increment) Execute(
	ctx context.Context,
	r chain.Rules,
	mu state.Mutable,
	_ int64,
	actor codec.Address,
	_ ids.ID,
) ([]byte, error) {
	counter, exists, err := storage.GetCounter(ctx, mu, i.Counter)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, precondition(ErrCounterNotFound)
	}
	if codec.Address(counter.Authority) != actor {
		return nil, precondition(ErrUnauthorized)
	}
	addr, _, err := derive.NewCounterDeriver(r.ProgramID()).Derive(actor[:])
	if err != nil {
		return nil, err
	}
	if addr != i.Counter {
		return nil, precondition(ErrInvalidCounterAddress)
	}
	count, err := smath.Add64(counter.Count, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: count=%d", ErrOverflow, counter.Count)
	}
	counter.Count = count
	if err := storage.SetCounter(ctx, mu, i.Counter, counter); err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(nil, count), nil
}

func (*Increment) Size() int {
	return codec.AddressLen
}

func (i *Increment) Marshal(p *codec.Packer) {
	p.PackAddress(i.Counter)
}

func UnmarshalIncrement(p *codec.Packer) (chain.Action, error) {
	var increment Increment
	p.UnpackAddress(&increment.Counter)
	return &increment, p.Err()
}
