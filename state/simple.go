// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"context"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/maybe"
)

var _ Mutable = (*SimpleMutable)(nil)

// SimpleMutable buffers changes over [Immutable] without any scope checks.
// It is used to seed state outside of transaction execution.
type SimpleMutable struct {
	v Immutable

	changes map[string]maybe.Maybe[[]byte]
}

func NewSimpleMutable(v Immutable) *SimpleMutable {
	return &SimpleMutable{v, make(map[string]maybe.Maybe[[]byte])}
}

func (s *SimpleMutable) GetValue(ctx context.Context, k []byte) ([]byte, error) {
	if v, ok := s.changes[string(k)]; ok {
		if v.IsNothing() {
			return nil, database.ErrNotFound
		}
		return v.Value(), nil
	}
	return s.v.GetValue(ctx, k)
}

func (s *SimpleMutable) Insert(_ context.Context, k []byte, v []byte) error {
	s.changes[string(k)] = maybe.Some(v)
	return nil
}

func (s *SimpleMutable) Remove(_ context.Context, k []byte) error {
	s.changes[string(k)] = maybe.Nothing[[]byte]()
	return nil
}

// Commit writes every buffered change into [db] in a single batch.
func (s *SimpleMutable) Commit(db database.Batcher) error {
	batch := db.NewBatch()
	for k, v := range s.changes {
		if v.IsNothing() {
			if err := batch.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := batch.Put([]byte(k), v.Value()); err != nil {
			return err
		}
	}
	return batch.Write()
}

var _ Immutable = DatabaseReader{}

// DatabaseReader adapts a [database.KeyValueReader] to [Immutable].
type DatabaseReader struct {
	DB database.KeyValueReader
}

func (r DatabaseReader) GetValue(_ context.Context, key []byte) ([]byte, error) {
	return r.DB.Get(key)
}
