// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/keys"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/tstate"
	"github.com/ava-labs/countervm/utils"
)

type Transaction struct {
	Base *Base `json:"base"`

	Action Action `json:"action"`
	Auth   Auth   `json:"auth"`

	digest    []byte
	bytes     []byte
	size      int
	id        ids.ID
	stateKeys state.Keys
}

func NewTx(base *Base, action Action) *Transaction {
	return &Transaction{
		Base:   base,
		Action: action,
	}
}

// Digest is the part of the transaction the [Auth] signs:
// base|actionType|action.
func (t *Transaction) Digest() ([]byte, error) {
	if len(t.digest) > 0 {
		return t.digest, nil
	}
	size := t.Base.Size() + consts.ByteLen + t.Action.Size()
	p := codec.NewWriter(size, consts.NetworkSizeLimit)
	t.Base.Marshal(p)
	p.PackByte(t.Action.GetTypeID())
	t.Action.Marshal(p)
	return p.Bytes(), p.Err()
}

func (t *Transaction) Sign(factory AuthFactory, registry Registry) (*Transaction, error) {
	msg, err := t.Digest()
	if err != nil {
		return nil, err
	}
	auth, err := factory.Sign(msg)
	if err != nil {
		return nil, err
	}
	t.Auth = auth

	// Ensure transaction is fully initialized and correct by reloading it from
	// bytes
	size := len(msg) + consts.ByteLen + t.Auth.Size()
	p := codec.NewWriter(size, consts.NetworkSizeLimit)
	if err := t.Marshal(p); err != nil {
		return nil, err
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	p = codec.NewReader(p.Bytes(), consts.NetworkSizeLimit)
	return UnmarshalTx(p, registry)
}

func (t *Transaction) Bytes() []byte { return t.bytes }

func (t *Transaction) Size() int { return t.size }

func (t *Transaction) ID() ids.ID { return t.id }

// Actor is the address the [Action] runs as.
func (t *Transaction) Actor() codec.Address { return t.Auth.Actor() }

// StateKeys returns every key the transaction may touch.
func (t *Transaction) StateKeys() (state.Keys, error) {
	if t.stateKeys != nil {
		return t.stateKeys, nil
	}
	stateKeys := make(state.Keys)

	// Verify the formatting of state keys passed by the action
	for k, v := range t.Action.StateKeys(t.Auth.Actor()) {
		if !keys.Valid([]byte(k)) {
			return nil, ErrInvalidKeyValue
		}
		// [Add] will take the union of key permissions
		stateKeys.Add(k, v)
	}

	// Cache keys if called again
	t.stateKeys = stateKeys
	return stateKeys, nil
}

// AuthAsyncVerify returns a function that verifies the signature of t.
func (t *Transaction) AuthAsyncVerify(ctx context.Context) func() error {
	return func() error {
		return t.Auth.Verify(ctx, t.digest)
	}
}

// PreExecute checks everything about t that does not depend on state.
func (t *Transaction) PreExecute(r Rules) error {
	return t.Base.Execute(r)
}

// Execute runs the [Action] of t against [ts].
//
// Invalid transactions return an error and nothing else. A valid transaction
// always yields a [Result]; when the action fails [ts] is rolled back to
// where it was before the call.
func (t *Transaction) Execute(
	ctx context.Context,
	tracer trace.Tracer, //nolint:interfacer
	r Rules,
	ts *tstate.TStateView,
	timestamp int64,
) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Transaction.Execute")
	defer span.End()

	if err := t.PreExecute(r); err != nil {
		return nil, err
	}
	start := ts.OpIndex()
	output, err := t.Action.Execute(ctx, r, ts, timestamp, t.Auth.Actor(), t.id)
	if err != nil {
		ts.Rollback(ctx, start)
		return &Result{
			Success: false,
			Code:    ErrorCode(err),
			Error:   utils.ErrBytes(err),
			Err:     err,
		}, nil
	}
	allocates, writes := ts.KeyOperations()
	return &Result{
		Success:   true,
		Output:    output,
		Allocates: sumChunks(allocates),
		Writes:    sumChunks(writes),
	}, nil
}

func sumChunks(m map[string]uint16) uint64 {
	var total uint64
	for _, chunks := range m {
		total += uint64(chunks)
	}
	return total
}

func (t *Transaction) Marshal(p *codec.Packer) error {
	if len(t.bytes) > 0 {
		p.PackFixedBytes(t.bytes)
		return p.Err()
	}
	if t.Auth == nil {
		return ErrAuthNotSet
	}

	t.Base.Marshal(p)
	p.PackByte(t.Action.GetTypeID())
	t.Action.Marshal(p)
	p.PackByte(t.Auth.GetTypeID())
	t.Auth.Marshal(p)
	return p.Err()
}

func UnmarshalTx(p *codec.Packer, registry Registry) (*Transaction, error) {
	start := p.Offset()
	base, err := UnmarshalBase(p)
	if err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal base", err)
	}
	actionType := p.UnpackByte()
	unmarshalAction, ok := registry.ActionRegistry().LookupIndex(actionType)
	if !ok {
		return nil, fmt.Errorf("%w: %d is unknown action type", ErrUnknownAction, actionType)
	}
	action, err := unmarshalAction(p)
	if err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal action", err)
	}
	digest := p.Offset()
	authType := p.UnpackByte()
	unmarshalAuth, ok := registry.AuthRegistry().LookupIndex(authType)
	if !ok {
		return nil, fmt.Errorf("%w: %d is unknown auth type", ErrUnknownAuth, authType)
	}
	auth, err := unmarshalAuth(p)
	if err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal auth", err)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	var tx Transaction
	tx.Base = base
	tx.Action = action
	tx.Auth = auth
	codecBytes := p.Bytes()
	tx.digest = codecBytes[start:digest]
	tx.bytes = codecBytes[start:p.Offset()] // ensure errors handled before grabbing memory
	tx.size = len(tx.bytes)
	tx.id = utils.ToID(tx.bytes)
	return &tx, nil
}

// ParseTx decodes a single transaction that must span all of [b].
func ParseTx(b []byte, registry Registry) (*Transaction, error) {
	p := codec.NewReader(b, consts.NetworkSizeLimit)
	tx, err := UnmarshalTx(p, registry)
	if err != nil {
		return nil, err
	}
	if !p.Empty() {
		return nil, ErrInvalidObject
	}
	return tx, nil
}

// MarshalTxs encodes [txs] as count|tx...
func MarshalTxs(txs []*Transaction) ([]byte, error) {
	size := consts.IntLen
	for _, tx := range txs {
		size += tx.Size()
	}
	p := codec.NewWriter(size, consts.NetworkSizeLimit)
	p.PackUint32(uint32(len(txs)))
	for _, tx := range txs {
		if err := tx.Marshal(p); err != nil {
			return nil, err
		}
	}
	return p.Bytes(), p.Err()
}

// UnmarshalTxs decodes a list written by [MarshalTxs]. It returns the number
// of auth signatures of each type so a verifier can size its batches.
func UnmarshalTxs(raw []byte, initialCapacity int, registry Registry) (map[uint8]int, []*Transaction, error) {
	p := codec.NewReader(raw, consts.NetworkSizeLimit)
	txCount := p.UnpackUint32(true)
	authCounts := map[uint8]int{}
	txs := make([]*Transaction, 0, min(initialCapacity, int(txCount)))
	for i := uint32(0); i < txCount; i++ {
		tx, err := UnmarshalTx(p, registry)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, tx)
		authCounts[tx.Auth.GetTypeID()]++
	}
	if !p.Empty() {
		// Ensure no leftover bytes
		return nil, nil, ErrInvalidObject
	}
	return authCounts, txs, p.Err()
}
