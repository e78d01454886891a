// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tstate

import (
	"context"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/maybe"

	"github.com/ava-labs/countervm/keys"
	"github.com/ava-labs/countervm/state"
)

const defaultOps = 4

var _ state.Mutable = (*TStateView)(nil)

type op struct {
	k string

	hadPending  bool
	pastPending maybe.Maybe[[]byte]

	pastAllocates *uint16
	pastWrites    *uint16
}

// TStateView is a unit of work over [TState]. Every change is recorded so it
// can be rolled back, and nothing is visible outside the view until [Commit].
type TStateView struct {
	ts                 *TState
	pendingChangedKeys map[string]maybe.Maybe[[]byte]

	// Ops is a record of all operations performed on [TState]. Tracking
	// operations allows for reverting state to a certain point-in-time.
	ops []*op

	// Keys that can be accessed and the permissions granted on each.
	scope        state.Keys
	scopeStorage map[string][]byte

	// Store which keys are modified and how large their values were.
	allocations map[string]uint16
	writes      map[string]uint16
}

// NewView returns a view limited to [scope]. [storage] holds the committed
// value of every key in [scope] that exists.
func (ts *TState) NewView(scope state.Keys, storage map[string][]byte) *TStateView {
	return &TStateView{
		ts:                 ts,
		pendingChangedKeys: make(map[string]maybe.Maybe[[]byte], len(scope)),

		ops: make([]*op, 0, defaultOps),

		scope:        scope,
		scopeStorage: storage,

		allocations: make(map[string]uint16, len(scope)),
		writes:      make(map[string]uint16, len(scope)),
	}
}

// Rollback restores the TStateView to the ts.op[restorePoint] operation.
func (ts *TStateView) Rollback(_ context.Context, restorePoint int) {
	for i := len(ts.ops) - 1; i >= restorePoint; i-- {
		op := ts.ops[i]
		if op.hadPending {
			ts.pendingChangedKeys[op.k] = op.pastPending
		} else {
			delete(ts.pendingChangedKeys, op.k)
		}
		restoreChunks(ts.allocations, op.k, op.pastAllocates)
		restoreChunks(ts.writes, op.k, op.pastWrites)
	}
	ts.ops = ts.ops[:restorePoint]
}

// OpIndex returns the number of operations done on ts.
func (ts *TStateView) OpIndex() int {
	return len(ts.ops)
}

// KeyOperations returns the number of chunks allocated and written per key
// since the view was created.
//
// If an operation is performed more than once during this time, the largest
// operation will be returned here (if 1 chunk then 2 chunks are written to a key,
// this function will return 2 chunks).
func (ts *TStateView) KeyOperations() (map[string]uint16, map[string]uint16) {
	return ts.allocations, ts.writes
}

// checkScope returns whether [k] is in scope with [perm].
func (ts *TStateView) checkScope(_ context.Context, k []byte, perm state.Permissions) bool {
	return ts.scope[string(k)].Has(perm)
}

// GetValue returns the value associated with [key]. If [key] is not readable
// in scope, ErrInvalidKeyOrPermission is returned. If it does not exist,
// [database.ErrNotFound] is returned.
func (ts *TStateView) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	if !ts.checkScope(ctx, key, state.Read) {
		return nil, ErrInvalidKeyOrPermission
	}
	v, _, exists := ts.getValue(ctx, string(key))
	if !exists {
		return nil, database.ErrNotFound
	}
	return v, nil
}

// Exists returns whether or not the associated [key] is present.
func (ts *TStateView) Exists(ctx context.Context, key []byte) (bool, bool, error) {
	if !ts.checkScope(ctx, key, state.Read) {
		return false, false, ErrInvalidKeyOrPermission
	}
	_, changed, exists := ts.getValue(ctx, string(key))
	return changed, exists, nil
}

func (ts *TStateView) getValue(ctx context.Context, key string) ([]byte, bool, bool) {
	if v, ok := ts.pendingChangedKeys[key]; ok {
		if v.IsNothing() {
			return nil, true, false
		}
		return v.Value(), true, true
	}
	if v, changed, exists := ts.ts.getChangedValue(ctx, key); changed {
		return v, true, exists
	}
	if v, ok := ts.scopeStorage[key]; ok {
		return v, false, true
	}
	return nil, false, false
}

// Insert sets or updates [key] to [value]. Creating a key requires
// [state.Allocate] and updating one requires [state.Write].
//
// Any bytes passed into [Insert] will be consumed by [TState] and should
// not be modified/referenced after this call.
func (ts *TStateView) Insert(ctx context.Context, key []byte, value []byte) error {
	if !keys.VerifyValue(key, value) {
		return ErrInvalidKeyValue
	}
	k := string(key)
	_, _, exists := ts.getValue(ctx, k)
	if exists {
		if !ts.checkScope(ctx, key, state.Write) {
			return ErrInvalidKeyOrPermission
		}
	} else {
		if !ts.checkScope(ctx, key, state.Allocate) {
			return ErrInvalidKeyOrPermission
		}
	}

	o := ts.newOp(k)
	if !exists {
		// MaxChunks never fails here because [VerifyValue] parsed [key]
		keyChunks, _ := keys.MaxChunks(key)
		ts.allocations[k] = keyChunks
	}
	if err := updateChunks(ts.writes, k, value); err != nil {
		return err
	}
	ts.pendingChangedKeys[k] = maybe.Some(value)
	ts.ops = append(ts.ops, o)
	return nil
}

// Remove deletes [key]. Removing a key that does not exist is a no-op.
func (ts *TStateView) Remove(ctx context.Context, key []byte) error {
	if !ts.checkScope(ctx, key, state.Write) {
		return ErrInvalidKeyOrPermission
	}
	k := string(key)
	if _, _, exists := ts.getValue(ctx, k); !exists {
		// We do not update writes if the key does not exist.
		return nil
	}
	o := ts.newOp(k)
	delete(ts.allocations, k)
	ts.writes[k] = 0
	ts.pendingChangedKeys[k] = maybe.Nothing[[]byte]()
	ts.ops = append(ts.ops, o)
	return nil
}

// newOp captures everything about [k] that an operation may change.
func (ts *TStateView) newOp(k string) *op {
	pending, hadPending := ts.pendingChangedKeys[k]
	return &op{
		k:             k,
		hadPending:    hadPending,
		pastPending:   pending,
		pastAllocates: chunks(ts.allocations, k),
		pastWrites:    chunks(ts.writes, k),
	}
}

// PendingChanges returns the number of keys changed in the view.
func (ts *TStateView) PendingChanges() int {
	return len(ts.pendingChangedKeys)
}

// Commit publishes every pending change to the parent [TState].
func (ts *TStateView) Commit() {
	ts.ts.l.Lock()
	defer ts.ts.l.Unlock()

	for k, v := range ts.pendingChangedKeys {
		ts.ts.changedKeys[k] = v
	}
	ts.ts.ops += len(ts.ops)
}

// updateChunks sets the number of chunks associated with a key that will
// be returned in [KeyOperations]. We store the largest chunks used (within
// the limit specified by the key).
func updateChunks(m map[string]uint16, key string, value []byte) error {
	chunks, ok := keys.NumChunks(value)
	if !ok {
		return ErrInvalidKeyValue
	}
	if previousChunks, ok := m[key]; !ok || chunks > previousChunks {
		m[key] = chunks
	}
	return nil
}

// chunks gets the number of chunks for a key in [m]
// or returns nil.
func chunks(m map[string]uint16, key string) *uint16 {
	chunks, ok := m[key]
	if !ok {
		return nil
	}
	return &chunks
}

func restoreChunks(m map[string]uint16, key string, past *uint16) {
	if past == nil {
		delete(m, key)
		return
	}
	m[key] = *past
}
