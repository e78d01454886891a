// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tstate

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/keys"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/trace"
)

var (
	testKey  = keys.EncodeChunks([]byte("key"), 1)
	testKey2 = keys.EncodeChunks([]byte("key2"), 1)
	testVal  = []byte("value")
	testVal2 = []byte("value2")
)

func TestScope(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// No Scope
	tsv := ts.NewView(state.Keys{}, map[string][]byte{})
	_, err := tsv.GetValue(ctx, testKey)
	require.ErrorIs(err, ErrInvalidKeyOrPermission)
	require.ErrorIs(tsv.Insert(ctx, testKey, testVal), ErrInvalidKeyOrPermission)
	require.ErrorIs(tsv.Remove(ctx, testKey), ErrInvalidKeyOrPermission)
}

func TestGetValue(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// Set Scope
	tsv := ts.NewView(state.Keys{string(testKey): state.Read}, map[string][]byte{string(testKey): testVal})
	val, err := tsv.GetValue(ctx, testKey)
	require.NoError(err, "unable to get value.")
	require.Equal(testVal, val, "value was not saved correctly.")
}

func TestGetValueNoStorage(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// SetScope but dont add to storage
	tsv := ts.NewView(state.Keys{string(testKey): state.Read}, map[string][]byte{})
	_, err := tsv.GetValue(ctx, testKey)
	require.ErrorIs(database.ErrNotFound, err, "data should not exist.")
}

func TestInsertNew(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// Read permission cannot create
	tsv := ts.NewView(state.Keys{string(testKey): state.Read}, map[string][]byte{})
	require.ErrorIs(tsv.Insert(ctx, testKey, testVal), ErrInvalidKeyOrPermission)

	// Allocate permission can create
	tsv = ts.NewView(state.Keys{string(testKey): state.Allocate}, map[string][]byte{})
	require.NoError(tsv.Insert(ctx, testKey, testVal))
	val, err := tsv.GetValue(ctx, testKey)
	require.NoError(err)
	require.Equal(1, tsv.OpIndex(), "insert was not added as an operation.")
	require.Equal(testVal, val, "value was not set correctly.")

	allocates, writes := tsv.KeyOperations()
	require.Equal(map[string]uint16{string(testKey): 1}, allocates)
	require.Equal(map[string]uint16{string(testKey): 1}, writes)

	// Nothing reaches ts until commit
	_, changed, _ := ts.getChangedValue(ctx, string(testKey))
	require.False(changed)
	tsv.Commit()
	v, changed, exists := ts.getChangedValue(ctx, string(testKey))
	require.True(changed)
	require.True(exists)
	require.Equal(testVal, v)
	require.Equal(1, ts.OpIndex())
}

func TestInsertUpdate(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// Allocate permission cannot overwrite
	storage := map[string][]byte{string(testKey): testVal}
	tsv := ts.NewView(state.Keys{string(testKey): state.Allocate}, storage)
	require.ErrorIs(tsv.Insert(ctx, testKey, testVal2), ErrInvalidKeyOrPermission)

	tsv = ts.NewView(state.Keys{string(testKey): state.Write}, storage)
	require.NoError(tsv.Insert(ctx, testKey, testVal2))
	val, err := tsv.GetValue(ctx, testKey)
	require.NoError(err)
	require.Equal(1, tsv.OpIndex())
	require.Nil(tsv.ops[0].pastAllocates)
	require.Nil(tsv.ops[0].pastWrites)
	require.False(tsv.ops[0].hadPending)
	require.Equal(testVal2, val)

	allocates, writes := tsv.KeyOperations()
	require.Empty(allocates)
	require.Equal(map[string]uint16{string(testKey): 1}, writes)
}

func TestInsertInvalidValue(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	key := keys.EncodeChunks([]byte("small"), 1)
	tsv := ts.NewView(state.Keys{string(key): state.All}, map[string][]byte{})
	require.ErrorIs(tsv.Insert(ctx, key, make([]byte, 128)), ErrInvalidKeyValue)
	require.Zero(tsv.OpIndex())
}

func TestExists(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	tsv := ts.NewView(
		state.Keys{string(testKey): state.All, string(testKey2): state.Read},
		map[string][]byte{string(testKey2): testVal},
	)
	changed, exists, err := tsv.Exists(ctx, testKey)
	require.NoError(err)
	require.False(changed)
	require.False(exists)

	require.NoError(tsv.Insert(ctx, testKey, testVal))
	changed, exists, err = tsv.Exists(ctx, testKey)
	require.NoError(err)
	require.True(changed)
	require.True(exists)

	changed, exists, err = tsv.Exists(ctx, testKey2)
	require.NoError(err)
	require.False(changed)
	require.True(exists)
}

func TestRemoveInsertRollback(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)
	tsv := ts.NewView(state.Keys{string(testKey): state.All}, map[string][]byte{})

	// Insert
	require.NoError(tsv.Insert(ctx, testKey, testVal))
	v, err := tsv.GetValue(ctx, testKey)
	require.NoError(err)
	require.Equal(testVal, v)
	require.Equal(1, tsv.OpIndex())

	// Remove
	require.NoError(tsv.Remove(ctx, testKey))
	_, err = tsv.GetValue(ctx, testKey)
	require.ErrorIs(err, database.ErrNotFound)
	require.Equal(2, tsv.OpIndex())

	// Insert
	require.NoError(tsv.Insert(ctx, testKey, testVal2))
	v, err = tsv.GetValue(ctx, testKey)
	require.NoError(err)
	require.Equal(testVal2, v)
	require.Equal(3, tsv.OpIndex())
	require.Equal(1, tsv.PendingChanges())

	// Rollback Insert
	tsv.Rollback(ctx, 2)
	_, err = tsv.GetValue(ctx, testKey)
	require.ErrorIs(err, database.ErrNotFound)
	allocates, writes := tsv.KeyOperations()
	require.Empty(allocates)
	require.Equal(map[string]uint16{string(testKey): 0}, writes)

	// Rollback Remove
	tsv.Rollback(ctx, 1)
	v, err = tsv.GetValue(ctx, testKey)
	require.NoError(err)
	require.Equal(testVal, v)
	allocates, writes = tsv.KeyOperations()
	require.Equal(map[string]uint16{string(testKey): 1}, allocates)
	require.Equal(map[string]uint16{string(testKey): 1}, writes)

	// Rollback everything
	tsv.Rollback(ctx, 0)
	_, err = tsv.GetValue(ctx, testKey)
	require.ErrorIs(err, database.ErrNotFound)
	require.Zero(tsv.OpIndex())
	require.Zero(tsv.PendingChanges())
	allocates, writes = tsv.KeyOperations()
	require.Empty(allocates)
	require.Empty(writes)
}

func TestRemoveNotInScope(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)

	// Remove a key that doesn't exist
	tsv := ts.NewView(state.Keys{string(testKey): state.Write}, map[string][]byte{})
	require.NoError(tsv.Remove(ctx, testKey))
	require.Zero(tsv.OpIndex())
}

func TestViewsSeeCommittedChanges(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)
	scope := state.Keys{string(testKey): state.All}

	tsv := ts.NewView(scope, map[string][]byte{string(testKey): testVal})
	require.NoError(tsv.Remove(ctx, testKey))
	tsv.Commit()

	// Stale storage is shadowed by the committed remove
	tsv2 := ts.NewView(scope, map[string][]byte{string(testKey): testVal})
	_, err := tsv2.GetValue(ctx, testKey)
	require.ErrorIs(err, database.ErrNotFound)
	require.NoError(tsv2.Insert(ctx, testKey, testVal2))

	// A dropped view leaves ts untouched
	v, changed, exists := ts.getChangedValue(ctx, string(testKey))
	require.True(changed)
	require.False(exists)
	require.Nil(v)
}

func TestWriteChanges(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	ts := New(10)
	db := memdb.New()
	require.NoError(db.Put(testKey2, testVal))

	tsv := ts.NewView(
		state.Keys{string(testKey): state.All, string(testKey2): state.All},
		map[string][]byte{string(testKey2): testVal},
	)
	require.NoError(tsv.Insert(ctx, testKey, testVal))
	require.NoError(tsv.Remove(ctx, testKey2))
	tsv.Commit()
	require.Equal(2, ts.PendingChanges())

	batch := db.NewBatch()
	require.NoError(ts.WriteChanges(ctx, batch, trace.Noop()))
	has, err := db.Has(testKey)
	require.NoError(err)
	require.False(has, "changes should not land before the batch is written")

	require.NoError(batch.Write())
	v, err := db.Get(testKey)
	require.NoError(err)
	require.Equal(testVal, v)
	_, err = db.Get(testKey2)
	require.ErrorIs(err, database.ErrNotFound)
}
