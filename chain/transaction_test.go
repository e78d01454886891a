// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/crypto"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/trace"
	"github.com/ava-labs/countervm/tstate"
)

func newRegistry(t *testing.T) chain.Registry {
	actionParser, err := actions.NewParser()
	require.NoError(t, err)
	authParser, err := auth.NewParser()
	require.NoError(t, err)
	return chain.NewRegistry(actionParser, authParser)
}

func newFactory(t *testing.T) *auth.ED25519Factory {
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return auth.NewED25519Factory(priv)
}

func counterAddress(t *testing.T, r chain.Rules, actor codec.Address) codec.Address {
	addr, _, err := derive.NewCounterDeriver(r.ProgramID()).Derive(actor[:])
	require.NoError(t, err)
	return addr
}

func newTx(t *testing.T, r chain.Rules, action chain.Action, factory chain.AuthFactory) *chain.Transaction {
	tx := chain.NewTx(&chain.Base{
		Timestamp: time.Now().UnixMilli(),
		ChainID:   r.ChainID(),
		Nonce:     1,
	}, action)
	signed, err := tx.Sign(factory, newRegistry(t))
	require.NoError(t, err)
	return signed
}

func TestTransactionSign(t *testing.T) {
	require := require.New(t)
	rules := chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID()))
	factory := newFactory(t)
	addr := counterAddress(t, rules, factory.Address())

	tx := newTx(t, rules, &actions.Initialize{Counter: addr}, factory)
	require.Equal(factory.Address(), tx.Actor())
	require.Equal(len(tx.Bytes()), tx.Size())
	require.Equal(chain.BaseSize+consts.ByteLen+codec.AddressLen+consts.ByteLen+auth.ED25519Size, tx.Size())

	// Signature covers everything before the auth
	digest, err := tx.Digest()
	require.NoError(err)
	require.Equal(tx.Bytes()[:len(digest)], digest)
	require.NoError(tx.Auth.Verify(context.TODO(), digest))
	require.NoError(tx.AuthAsyncVerify(context.TODO())())

	parsed, err := chain.ParseTx(tx.Bytes(), newRegistry(t))
	require.NoError(err)
	require.Equal(tx.ID(), parsed.ID())
	require.Equal(tx.Base, parsed.Base)
	require.Equal(tx.Action, parsed.Action)

	// Trailing bytes are rejected
	_, err = chain.ParseTx(append(tx.Bytes(), 0), newRegistry(t))
	require.ErrorIs(err, chain.ErrInvalidObject)
}

func TestTransactionTampered(t *testing.T) {
	require := require.New(t)
	rules := chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID()))
	factory := newFactory(t)
	addr := counterAddress(t, rules, factory.Address())

	tx := newTx(t, rules, &actions.Increment{Counter: addr}, factory)
	raw := append([]byte{}, tx.Bytes()...)
	// Flip the nonce
	raw[consts.Int64Len+consts.IDLen+consts.Uint64Len-1] ^= 0xff
	parsed, err := chain.ParseTx(raw, newRegistry(t))
	require.NoError(err)
	require.NotEqual(tx.ID(), parsed.ID())
	require.ErrorIs(parsed.AuthAsyncVerify(context.TODO())(), crypto.ErrInvalidSignature)
}

func TestUnknownAction(t *testing.T) {
	require := require.New(t)

	base := &chain.Base{Timestamp: 1, ChainID: ids.GenerateTestID()}
	p := codec.NewWriter(0, consts.NetworkSizeLimit)
	base.Marshal(p)
	p.PackByte(actions.IncrementID + 1)
	p.PackAddress(codec.Address(ids.GenerateTestID()))
	require.NoError(p.Err())

	_, err := chain.ParseTx(p.Bytes(), newRegistry(t))
	require.ErrorIs(err, chain.ErrUnknownAction)
}

func TestUnknownAuth(t *testing.T) {
	require := require.New(t)

	base := &chain.Base{Timestamp: 1, ChainID: ids.GenerateTestID()}
	p := codec.NewWriter(0, consts.NetworkSizeLimit)
	base.Marshal(p)
	p.PackByte(actions.IncrementID)
	p.PackAddress(codec.Address(ids.GenerateTestID()))
	p.PackByte(auth.ED25519ID + 1)
	require.NoError(p.Err())

	_, err := chain.ParseTx(p.Bytes(), newRegistry(t))
	require.ErrorIs(err, chain.ErrUnknownAuth)
}

func TestMarshalTxs(t *testing.T) {
	require := require.New(t)
	rules := chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID()))

	txs := make([]*chain.Transaction, 0, 5)
	for i := 0; i < 5; i++ {
		factory := newFactory(t)
		txs = append(txs, newTx(t, rules, &actions.Initialize{Counter: counterAddress(t, rules, factory.Address())}, factory))
	}
	raw, err := chain.MarshalTxs(txs)
	require.NoError(err)

	authCounts, parsed, err := chain.UnmarshalTxs(raw, 10, newRegistry(t))
	require.NoError(err)
	require.Equal(map[uint8]int{auth.ED25519ID: 5}, authCounts)
	require.Len(parsed, len(txs))
	for i, tx := range txs {
		require.Equal(tx.ID(), parsed[i].ID())
	}

	_, _, err = chain.UnmarshalTxs(append(raw, 0), 10, newRegistry(t))
	require.ErrorIs(err, chain.ErrInvalidObject)
}

func execute(t *testing.T, ts *tstate.TState, r chain.Rules, tx *chain.Transaction) (*tstate.TStateView, *chain.Result, error) {
	stateKeys, err := tx.StateKeys()
	require.NoError(t, err)
	tsv := ts.NewView(stateKeys, map[string][]byte{})
	result, err := tx.Execute(context.TODO(), trace.Noop(), r, tsv, time.Now().UnixMilli())
	return tsv, result, err
}

func TestExecute(t *testing.T) {
	require := require.New(t)
	rules := chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID()))
	factory := newFactory(t)
	addr := counterAddress(t, rules, factory.Address())
	ts := tstate.New(1)

	// Increment before initialize fails and leaves nothing behind
	tsv, result, err := execute(t, ts, rules, newTx(t, rules, &actions.Increment{Counter: addr}, factory))
	require.NoError(err)
	require.False(result.Success)
	require.Equal(actions.ErrorCodePrecondition, result.Code)
	require.ErrorIs(result.Err, actions.ErrCounterNotFound)
	require.Equal([]byte(result.Err.Error()), result.Error)
	require.Zero(tsv.OpIndex())
	require.Zero(tsv.PendingChanges())

	tsv, result, err = execute(t, ts, rules, newTx(t, rules, &actions.Initialize{Counter: addr}, factory))
	require.NoError(err)
	require.True(result.Success)
	require.Equal(chain.ErrorCodeNone, result.Code)
	require.Len(result.Output, 1)
	require.Equal(uint64(1), result.Allocates)
	require.Equal(uint64(1), result.Writes)
	require.Equal(uint64(2), result.Units())
	tsv.Commit()

	// The next view sees the committed counter
	tsv, result, err = execute(t, ts, rules, newTx(t, rules, &actions.Increment{Counter: addr}, factory))
	require.NoError(err)
	require.True(result.Success)
	require.Equal(uint64(1), binary.BigEndian.Uint64(result.Output))
	require.Zero(result.Allocates)
	require.Equal(1, tsv.OpIndex())
}

func TestExecuteWrongChain(t *testing.T) {
	require := require.New(t)
	rules := chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID()))
	factory := newFactory(t)
	tx := newTx(t, rules, &actions.Initialize{Counter: counterAddress(t, rules, factory.Address())}, factory)

	other := chain.NewRules(ids.GenerateTestID(), rules.ProgramID())
	tsv, result, err := execute(t, tstate.New(1), other, tx)
	require.ErrorIs(err, chain.ErrInvalidChainID)
	require.Nil(result)
	require.Zero(tsv.OpIndex())
}

func TestErrorCode(t *testing.T) {
	require := require.New(t)

	require.Equal(chain.ErrorCodeNone, chain.ErrorCode(nil))
	require.Equal(chain.ErrorCodeInternal, chain.ErrorCode(errors.New("boom")))
	require.Equal(chain.ErrorCodePrecondition, chain.ErrorCode(chain.ErrPreconditionFailed))
	wrapped := fmt.Errorf("%w: %w", chain.ErrPreconditionFailed, actions.ErrUnauthorized)
	require.Equal(chain.ErrorCodePrecondition, chain.ErrorCode(wrapped))
	require.Equal(actions.ErrorCodeOverflow, chain.ErrorCode(fmt.Errorf("%w: count=1", actions.ErrOverflow)))
}
