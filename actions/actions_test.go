// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/trace"
	"github.com/ava-labs/countervm/tstate"
)

type testEnv struct {
	t     *testing.T
	db    database.Database
	rules chain.Rules
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{
		t:     t,
		db:    memdb.New(),
		rules: chain.NewRules(ids.GenerateTestID(), codec.Address(ids.GenerateTestID())),
	}
}

func newActor(t *testing.T) codec.Address {
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return codec.Address(priv.PublicKey())
}

func (e *testEnv) counterAddress(actor codec.Address) codec.Address {
	addr, _, err := derive.NewCounterDeriver(e.rules.ProgramID()).Derive(actor[:])
	require.NoError(e.t, err)
	return addr
}

// execute runs [action] in its own view and writes the view to the database
// only if the action succeeds.
func (e *testEnv) execute(action chain.Action, actor codec.Address) ([]byte, error) {
	require := require.New(e.t)
	ctx := context.TODO()

	scope := action.StateKeys(actor)
	values := make(map[string][]byte, len(scope))
	for k := range scope {
		v, err := e.db.Get([]byte(k))
		if err == database.ErrNotFound {
			continue
		}
		require.NoError(err)
		values[k] = v
	}
	ts := tstate.New(len(scope))
	tsv := ts.NewView(scope, values)
	start := tsv.OpIndex()
	output, err := action.Execute(ctx, e.rules, tsv, 0, actor, ids.Empty)
	if err != nil {
		tsv.Rollback(ctx, start)
		require.Zero(tsv.PendingChanges())
		return output, err
	}
	tsv.Commit()
	batch := e.db.NewBatch()
	require.NoError(ts.WriteChanges(ctx, batch, trace.Noop()))
	require.NoError(batch.Write())
	return output, nil
}

func (e *testEnv) counter(addr codec.Address) (*storage.Counter, bool) {
	c, exists, err := storage.GetCounter(context.TODO(), state.DatabaseReader{DB: e.db}, addr)
	require.NoError(e.t, err)
	return c, exists
}

func (e *testEnv) rawCounter(addr codec.Address) []byte {
	v, err := e.db.Get(storage.CounterKey(addr))
	require.NoError(e.t, err)
	return v
}

func (e *testEnv) setCounter(addr codec.Address, c *storage.Counter) {
	mu := state.NewSimpleMutable(state.DatabaseReader{DB: e.db})
	require.NoError(e.t, storage.SetCounter(context.TODO(), mu, addr, c))
	require.NoError(e.t, mu.Commit(e.db))
}

func TestInitializeAndIncrement(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	b := newActor(t)
	addr := env.counterAddress(a)

	// Initialize(A)
	output, err := env.execute(&Initialize{Counter: addr}, a)
	require.NoError(err)
	_, bump, err := derive.NewCounterDeriver(env.rules.ProgramID()).Derive(a[:])
	require.NoError(err)
	require.Equal([]byte{bump}, output)
	c, exists := env.counter(addr)
	require.True(exists)
	require.Equal(codec.Address(c.Authority), a)
	require.Zero(c.Count)

	// Increment(A)
	output, err = env.execute(&Increment{Counter: addr}, a)
	require.NoError(err)
	require.Equal(uint64(1), binary.BigEndian.Uint64(output))

	// Increment(B)
	_, err = env.execute(&Increment{Counter: addr}, b)
	require.ErrorIs(err, ErrUnauthorized)
	require.ErrorIs(err, chain.ErrPreconditionFailed)
	require.Equal(ErrorCodePrecondition, chain.ErrorCode(err))
	c, _ = env.counter(addr)
	require.Equal(uint64(1), c.Count)
}

func TestIncrementUninitialized(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	addr := env.counterAddress(a)

	_, err := env.execute(&Increment{Counter: addr}, a)
	require.ErrorIs(err, ErrCounterNotFound)
	require.Equal(ErrorCodePrecondition, chain.ErrorCode(err))
	_, exists := env.counter(addr)
	require.False(exists)
}

func TestIncrementOverflow(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	addr := env.counterAddress(a)
	env.setCounter(addr, &storage.Counter{Authority: ed25519.PublicKey(a), Count: math.MaxUint64})
	before := env.rawCounter(addr)

	// Retrying never wraps
	for i := 0; i < 3; i++ {
		_, err := env.execute(&Increment{Counter: addr}, a)
		require.ErrorIs(err, ErrOverflow)
		require.NotErrorIs(err, chain.ErrPreconditionFailed)
		require.Equal(ErrorCodeOverflow, chain.ErrorCode(err))
		require.Equal(before, env.rawCounter(addr))
	}
	c, _ := env.counter(addr)
	require.Equal(consts.MaxUint64, c.Count)
}

func TestUnauthorizedBeforeOverflow(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	b := newActor(t)
	addr := env.counterAddress(a)
	env.setCounter(addr, &storage.Counter{Authority: ed25519.PublicKey(a), Count: math.MaxUint64})

	_, err := env.execute(&Increment{Counter: addr}, b)
	require.ErrorIs(err, ErrUnauthorized)
	require.NotErrorIs(err, ErrOverflow)
}

func TestNoReinitialization(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	addr := env.counterAddress(a)

	_, err := env.execute(&Initialize{Counter: addr}, a)
	require.NoError(err)
	for i := 0; i < 2; i++ {
		_, err = env.execute(&Increment{Counter: addr}, a)
		require.NoError(err)
	}
	before := env.rawCounter(addr)

	_, err = env.execute(&Initialize{Counter: addr}, a)
	require.ErrorIs(err, ErrAlreadyInitialized)
	require.Equal(ErrorCodePrecondition, chain.ErrorCode(err))
	require.Equal(before, env.rawCounter(addr))
	c, _ := env.counter(addr)
	require.Equal(uint64(2), c.Count)
}

func TestInitializeForeignAddress(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	b := newActor(t)

	// A cannot create the counter of B
	_, err := env.execute(&Initialize{Counter: env.counterAddress(b)}, a)
	require.ErrorIs(err, ErrInvalidCounterAddress)
	_, exists := env.counter(env.counterAddress(b))
	require.False(exists)

	// Nor a counter at its own key
	_, err = env.execute(&Initialize{Counter: a}, a)
	require.ErrorIs(err, ErrInvalidCounterAddress)
}

func TestIncrementForeignAddress(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)

	// A record owned by A stored somewhere other than its derived address
	other := codec.Address(ids.GenerateTestID())
	env.setCounter(other, &storage.Counter{Authority: ed25519.PublicKey(a)})
	_, err := env.execute(&Increment{Counter: other}, a)
	require.ErrorIs(err, ErrInvalidCounterAddress)
	c, _ := env.counter(other)
	require.Zero(c.Count)
}

func TestCountTracksSuccessfulIncrements(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	actors := []codec.Address{newActor(t), newActor(t), newActor(t)}
	owner := actors[0]
	addr := env.counterAddress(owner)

	// Increments before initialization fail
	_, err := env.execute(&Increment{Counter: addr}, owner)
	require.ErrorIs(err, ErrCounterNotFound)
	_, err = env.execute(&Initialize{Counter: addr}, owner)
	require.NoError(err)

	r := rand.New(rand.NewSource(1)) //nolint:gosec
	var (
		successes uint64
		last      uint64
	)
	for i := 0; i < 200; i++ {
		actor := actors[r.Intn(len(actors))]
		_, err := env.execute(&Increment{Counter: addr}, actor)
		if actor == owner {
			require.NoError(err)
			successes++
		} else {
			require.ErrorIs(err, ErrUnauthorized)
		}
		c, _ := env.counter(addr)
		require.GreaterOrEqual(c.Count, last)
		last = c.Count
	}
	c, _ := env.counter(addr)
	require.Equal(successes, c.Count)
}

func TestCorruptCounter(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	a := newActor(t)
	addr := env.counterAddress(a)
	require.NoError(env.db.Put(storage.CounterKey(addr), make([]byte, storage.CounterSpace)))

	_, err := env.execute(&Increment{Counter: addr}, a)
	require.ErrorIs(err, storage.ErrInvalidDiscriminator)
	require.Equal(chain.ErrorCodeInternal, chain.ErrorCode(err))
	_, err = env.execute(&Initialize{Counter: addr}, a)
	require.ErrorIs(err, storage.ErrInvalidDiscriminator)
}

func TestActionMarshal(t *testing.T) {
	require := require.New(t)
	parser, err := NewParser()
	require.NoError(err)

	addr := codec.Address(ids.GenerateTestID())
	for _, action := range []chain.Action{&Initialize{Counter: addr}, &Increment{Counter: addr}} {
		p := codec.NewWriter(action.Size(), consts.NetworkSizeLimit)
		action.Marshal(p)
		require.NoError(p.Err())
		require.Len(p.Bytes(), action.Size())

		unmarshal, ok := parser.LookupIndex(action.GetTypeID())
		require.True(ok)
		parsed, err := unmarshal(codec.NewReader(p.Bytes(), consts.NetworkSizeLimit))
		require.NoError(err)
		require.Equal(action, parsed)
	}

	_, ok := parser.LookupIndex(IncrementID + 1)
	require.False(ok)

	// The zero address is never a counter
	_, err = UnmarshalIncrement(codec.NewReader(make([]byte, codec.AddressLen), consts.NetworkSizeLimit))
	require.ErrorIs(err, codec.ErrFieldNotPopulated)
}

func TestStateKeys(t *testing.T) {
	require := require.New(t)

	addr := codec.Address(ids.GenerateTestID())
	k := string(storage.CounterKey(addr))
	require.True((&Initialize{Counter: addr}).StateKeys(codec.EmptyAddress)[k].Has(state.Allocate | state.Write))
	perm := (&Increment{Counter: addr}).StateKeys(codec.EmptyAddress)[k]
	require.True(perm.Has(state.Write))
	require.False(perm.Has(state.Allocate))
}
