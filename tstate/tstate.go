// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tstate

import (
	"context"
	"slices"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/maybe"
	"golang.org/x/exp/maps"
)

// TState defines a struct for storing temporary state.
//
// Changes only reach a TState when a [TStateView] is committed, so a view
// that fails can be dropped without touching anything other views see.
type TState struct {
	l           sync.RWMutex
	ops         int
	changedKeys map[string]maybe.Maybe[[]byte]
}

// New returns a new instance of TState. Initializes the storage and changedKeys
// maps to have an initial size of [changedSize].
func New(changedSize int) *TState {
	return &TState{
		changedKeys: make(map[string]maybe.Maybe[[]byte], changedSize),
	}
}

func (ts *TState) getChangedValue(_ context.Context, key string) ([]byte, bool, bool) {
	ts.l.RLock()
	defer ts.l.RUnlock()

	if v, ok := ts.changedKeys[key]; ok {
		if v.IsNothing() {
			return nil, true, false
		}
		return v.Value(), true, true
	}
	return nil, false, false
}

// OpIndex returns the number of operations committed into ts.
func (ts *TState) OpIndex() int {
	ts.l.RLock()
	defer ts.l.RUnlock()

	return ts.ops
}

// PendingChanges returns the number of keys changed in ts.
func (ts *TState) PendingChanges() int {
	ts.l.RLock()
	defer ts.l.RUnlock()

	return len(ts.changedKeys)
}

// WriteChanges writes every change in ts to [db] in key order.
//
// Pass a [database.Batch] so the changes land atomically.
func (ts *TState) WriteChanges(
	ctx context.Context,
	db database.KeyValueWriterDeleter,
	t trace.Tracer, //nolint:interfacer
) error {
	_, span := t.Start(ctx, "TState.WriteChanges")
	defer span.End()

	ts.l.RLock()
	defer ts.l.RUnlock()

	changed := maps.Keys(ts.changedKeys)
	slices.Sort(changed)
	for _, key := range changed {
		v := ts.changedKeys[key]
		if v.IsNothing() {
			if err := db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := db.Put([]byte(key), v.Value()); err != nil {
			return err
		}
	}
	return nil
}
