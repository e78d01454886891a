// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/keys"
	"github.com/ava-labs/countervm/state"
)

type ReadState func(context.Context, [][]byte) ([][]byte, []error)

// State
// 0x0/ (counters)
//   -> [address] => discriminator|authority|count
//
// Metadata
// 0x1/ (tx)
//   -> [txID] => timestamp|success|code|units

const (
	counterPrefix = 0x0
	txPrefix      = 0x1
)

const txValueLen = consts.Int64Len + consts.BoolLen + consts.Uint32Len + consts.Uint64Len

var (
	failureByte = byte(0x0)
	successByte = byte(0x1)
)

// [counterPrefix] + [address] + [chunks]
func CounterKey(addr codec.Address) (k []byte) {
	k = make([]byte, 1+codec.AddressLen, 1+codec.AddressLen+consts.Uint16Len)
	k[0] = counterPrefix
	copy(k[1:], addr[:])
	k, _ = keys.Encode(k, CounterSpace)
	return
}

// GetCounter returns the counter at [addr]. If it does not exist, the bool
// is false.
func GetCounter(
	ctx context.Context,
	im state.Immutable,
	addr codec.Address,
) (*Counter, bool, error) {
	return innerGetCounter(im.GetValue(ctx, CounterKey(addr)))
}

// Used to serve RPC queries
func GetCounterFromState(
	ctx context.Context,
	f ReadState,
	addr codec.Address,
) (*Counter, bool, error) {
	values, errs := f(ctx, [][]byte{CounterKey(addr)})
	return innerGetCounter(values[0], errs[0])
}

func innerGetCounter(v []byte, err error) (*Counter, bool, error) {
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c, err := UnmarshalCounter(v)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func SetCounter(
	ctx context.Context,
	mu state.Mutable,
	addr codec.Address,
	c *Counter,
) error {
	v, err := c.Marshal()
	if err != nil {
		return err
	}
	return mu.Insert(ctx, CounterKey(addr), v)
}

// [txPrefix] + [txID]
func TxKey(id ids.ID) (k []byte) {
	k = make([]byte, 1+consts.IDLen)
	k[0] = txPrefix
	copy(k[1:], id[:])
	return
}

func StoreTransaction(
	_ context.Context,
	db database.KeyValueWriter,
	id ids.ID,
	t int64,
	success bool,
	code uint32,
	units uint64,
) error {
	k := TxKey(id)
	v := make([]byte, txValueLen)
	binary.BigEndian.PutUint64(v, uint64(t))
	if success {
		v[consts.Int64Len] = successByte
	} else {
		v[consts.Int64Len] = failureByte
	}
	binary.BigEndian.PutUint32(v[consts.Int64Len+consts.BoolLen:], code)
	binary.BigEndian.PutUint64(v[consts.Int64Len+consts.BoolLen+consts.Uint32Len:], units)
	return db.Put(k, v)
}

// GetTransaction returns the stored result of [id]. If it was never stored,
// the first bool is false.
func GetTransaction(
	_ context.Context,
	db database.KeyValueReader,
	id ids.ID,
) (bool, int64, bool, uint32, uint64, error) {
	k := TxKey(id)
	v, err := db.Get(k)
	if errors.Is(err, database.ErrNotFound) {
		return false, 0, false, 0, 0, nil
	}
	if err != nil {
		return false, 0, false, 0, 0, err
	}
	if len(v) != txValueLen {
		return false, 0, false, 0, 0, ErrInvalidTransaction
	}
	t := int64(binary.BigEndian.Uint64(v))
	success := v[consts.Int64Len] == successByte
	code := binary.BigEndian.Uint32(v[consts.Int64Len+consts.BoolLen:])
	units := binary.BigEndian.Uint64(v[consts.Int64Len+consts.BoolLen+consts.Uint32Len:])
	return true, t, success, code, units, nil
}

func HasTransaction(
	_ context.Context,
	db database.KeyValueReader,
	id ids.ID,
) (bool, error) {
	return db.Has(TxKey(id))
}
