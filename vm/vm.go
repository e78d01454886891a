// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/neilotoole/errgroup"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/tstate"
)

// MaxSubmitTxs bounds the txs accepted by one [VM.SubmitBytes] call.
const MaxSubmitTxs = 1024

// Listener is notified of every transaction the VM executes and stores,
// whether or not its action succeeded. [count] is the committed count of
// [counter] after execution (0 if it does not exist).
type Listener interface {
	Accept(tx *chain.Transaction, result *chain.Result, counter codec.Address, count uint64) error
}

type Config struct {
	ChainID     ids.ID
	ProgramID   codec.Address
	VerifyCores int
}

type VM struct {
	log    logging.Logger
	tracer trace.Tracer
	db     state.Database

	rules       chain.Rules
	deriver     *derive.Deriver
	registry    chain.Registry
	authEngines auth.Engines
	verifyCores int

	metrics *Metrics
	clock   mockable.Clock

	// Held while a tx executes so every tx sees the committed result of the
	// one before it.
	lock sync.Mutex

	listenersL sync.RWMutex
	listeners  []Listener

	accepted atomic.Uint64
	closed   atomic.Bool
}

func New(
	log logging.Logger,
	tracer trace.Tracer,
	db state.Database,
	cfg Config,
) (*VM, *prometheus.Registry, error) {
	actionParser, err := actions.NewParser()
	if err != nil {
		return nil, nil, err
	}
	authParser, err := auth.NewParser()
	if err != nil {
		return nil, nil, err
	}
	registry, metrics, err := newMetrics()
	if err != nil {
		return nil, nil, err
	}
	verifyCores := cfg.VerifyCores
	if verifyCores <= 0 {
		verifyCores = 1
	}
	vm := &VM{
		log:         log,
		tracer:      tracer,
		db:          db,
		rules:       chain.NewRules(cfg.ChainID, cfg.ProgramID),
		deriver:     derive.NewCounterDeriver(cfg.ProgramID),
		registry:    chain.NewRegistry(actionParser, authParser),
		authEngines: auth.DefaultEngines(),
		verifyCores: verifyCores,
		metrics:     metrics,
	}
	log.Info("initialized vm",
		zap.Stringer("chainID", cfg.ChainID),
		zap.Stringer("programID", cfg.ProgramID),
		zap.Int("verifyCores", verifyCores),
	)
	return vm, registry, nil
}

func (vm *VM) Logger() logging.Logger { return vm.log }

func (vm *VM) Tracer() trace.Tracer { return vm.tracer }

func (vm *VM) Rules() chain.Rules { return vm.rules }

func (vm *VM) Registry() chain.Registry { return vm.registry }

// Accepted is the number of transactions executed and stored since start.
func (vm *VM) Accepted() uint64 { return vm.accepted.Load() }

func (vm *VM) AddListener(l Listener) {
	vm.listenersL.Lock()
	defer vm.listenersL.Unlock()

	vm.listeners = append(vm.listeners, l)
}

// Submit verifies the signatures of [txs] and then executes each valid one
// in order. For every tx either the result or the reason it was rejected is
// returned at the same index. Rejected txs leave no trace in state.
func (vm *VM) Submit(
	ctx context.Context,
	txs []*chain.Transaction,
) ([]*chain.Result, []error) {
	authCounts := make(map[uint8]int)
	for _, tx := range txs {
		authCounts[tx.Auth.GetTypeID()]++
	}
	return vm.submit(ctx, authCounts, txs)
}

// SubmitBytes decodes a list written by [chain.MarshalTxs] and submits it
// like [Submit]. An error is returned only if [raw] cannot be decoded, in
// which case nothing is executed.
func (vm *VM) SubmitBytes(
	ctx context.Context,
	raw []byte,
) ([]*chain.Transaction, []*chain.Result, []error, error) {
	authCounts, txs, err := chain.UnmarshalTxs(raw, MaxSubmitTxs, vm.registry)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(txs) > MaxSubmitTxs {
		return nil, nil, nil, fmt.Errorf("%w: %d > %d", ErrTooManyTxs, len(txs), MaxSubmitTxs)
	}
	results, errs := vm.submit(ctx, authCounts, txs)
	return txs, results, errs, nil
}

func (vm *VM) submit(
	ctx context.Context,
	authCounts map[uint8]int,
	txs []*chain.Transaction,
) ([]*chain.Result, []error) {
	ctx, span := vm.tracer.Start(ctx, "VM.Submit")
	defer span.End()

	results := make([]*chain.Result, len(txs))
	errs := make([]error, len(txs))
	if vm.closed.Load() {
		return results, closedErrs(errs)
	}
	vm.metrics.txsSubmitted.Add(float64(len(txs)))

	start := time.Now()
	vm.verifySignatures(ctx, authCounts, txs, errs)
	vm.metrics.waitSignatures.Observe(float64(time.Since(start)))

	vm.lock.Lock()
	defer vm.lock.Unlock()

	// Close may have completed while signatures were verified
	if vm.closed.Load() {
		vm.metrics.txsRejected.Add(float64(len(txs)))
		return results, closedErrs(errs)
	}
	for i, tx := range txs {
		if errs[i] == nil {
			start := time.Now()
			results[i], errs[i] = vm.execute(ctx, tx)
			vm.metrics.execute.Observe(float64(time.Since(start)))
		}
		if errs[i] != nil {
			vm.metrics.txsRejected.Inc()
			vm.log.Debug("rejected tx",
				zap.Stringer("txID", tx.ID()),
				zap.Error(errs[i]),
			)
		}
	}
	return results, errs
}

func closedErrs(errs []error) []error {
	for i := range errs {
		errs[i] = ErrClosed
	}
	return errs
}

// verifySignatures batch verifies every auth type with an engine. If a batch
// fails, each tx is verified on its own so one bad signature does not
// invalidate honest submissions.
func (vm *VM) verifySignatures(
	ctx context.Context,
	authCounts map[uint8]int,
	txs []*chain.Transaction,
	errs []error,
) {
	if len(txs) == 0 {
		return
	}
	_, span := vm.tracer.Start(ctx, "VM.verifySignatures")
	defer span.End()

	var (
		batchVerifiers = map[uint8]chain.AuthBatchVerifier{}
		batched        = make([]bool, len(txs))
		g, _           = errgroup.WithContextN(ctx, vm.verifyCores, len(txs))
	)
	for i, tx := range txs {
		authTypeID := tx.Auth.GetTypeID()
		bv, ok := batchVerifiers[authTypeID]
		if !ok {
			bv, ok = vm.authEngines.GetAuthBatchVerifier(authTypeID, vm.verifyCores, authCounts[authTypeID])
			if !ok {
				continue
			}
			batchVerifiers[authTypeID] = bv
		}
		digest, err := tx.Digest()
		if err != nil {
			errs[i] = err
			continue
		}
		batched[i] = true
		if verify := bv.Add(digest, tx.Auth); verify != nil {
			g.Go(verify)
		}
	}
	for _, bv := range batchVerifiers {
		for _, verify := range bv.Done() {
			g.Go(verify)
		}
	}
	batchErr := g.Wait()
	if batchErr != nil {
		vm.log.Debug("batch verification failed, verifying individually", zap.Error(batchErr))
	}

	g, _ = errgroup.WithContextN(ctx, vm.verifyCores, len(txs))
	for i, tx := range txs {
		if errs[i] != nil || (batched[i] && batchErr == nil) {
			continue
		}
		i, tx := i, tx
		g.Go(func() error {
			if err := tx.AuthAsyncVerify(ctx)(); err != nil {
				errs[i] = fmt.Errorf("%w: %w", ErrInvalidSignature, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// execute runs [tx] in its own unit of work and commits the state changes
// together with the stored result in one batch.
func (vm *VM) execute(ctx context.Context, tx *chain.Transaction) (*chain.Result, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.execute")
	defer span.End()

	txID := tx.ID()
	dup, err := storage.HasTransaction(ctx, vm.db, txID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTx, txID)
	}
	target, err := counterTarget(tx.Action)
	if err != nil {
		return nil, err
	}
	stateKeys, err := tx.StateKeys()
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(stateKeys))
	for k := range stateKeys {
		v, err := vm.db.Get([]byte(k))
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		values[k] = v
	}

	ts := tstate.New(len(stateKeys))
	view := ts.NewView(stateKeys, values)
	timestamp := vm.clock.Time().UnixMilli()
	result, err := tx.Execute(ctx, vm.tracer, vm.rules, view, timestamp)
	if err != nil {
		return nil, err
	}
	changed, count := vm.viewCount(ctx, view, target)
	view.Commit()

	batch := vm.db.NewBatch()
	if err := ts.WriteChanges(ctx, batch, vm.tracer); err != nil {
		return nil, err
	}
	if err := storage.StoreTransaction(ctx, batch, txID, timestamp, result.Success, result.Code, result.Units()); err != nil {
		return nil, err
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	vm.accepted.Inc()
	vm.metrics.txsAccepted.Inc()
	vm.recordResult(tx.Action, result)

	vm.log.Debug("executed tx",
		zap.Stringer("txID", txID),
		zap.Stringer("actor", tx.Actor()),
		zap.Stringer("counter", target),
		zap.Bool("success", result.Success),
		zap.Uint32("code", result.Code),
		zap.Bool("changed", changed),
		zap.Uint64("count", count),
	)
	vm.notify(tx, result, target, count)
	return result, nil
}

// viewCount reads [counter] from [view] as it will be committed. A record
// that cannot be decoded is reported with count 0.
func (vm *VM) viewCount(ctx context.Context, view *tstate.TStateView, counter codec.Address) (bool, uint64) {
	changed, exists, err := view.Exists(ctx, storage.CounterKey(counter))
	if err != nil || !exists {
		return changed, 0
	}
	c, _, err := storage.GetCounter(ctx, view, counter)
	if err != nil {
		vm.log.Warn("unable to decode counter",
			zap.Stringer("counter", counter),
			zap.Error(err),
		)
		return changed, 0
	}
	return changed, c.Count
}

func (vm *VM) recordResult(action chain.Action, result *chain.Result) {
	if !result.Success {
		vm.metrics.recordFailure(result.Code)
		return
	}
	switch action.GetTypeID() {
	case actions.InitializeID:
		vm.metrics.initialized.Inc()
	case actions.IncrementID:
		vm.metrics.incremented.Inc()
	}
}

func (vm *VM) notify(tx *chain.Transaction, result *chain.Result, counter codec.Address, count uint64) {
	vm.listenersL.RLock()
	defer vm.listenersL.RUnlock()

	for _, l := range vm.listeners {
		if err := l.Accept(tx, result, counter, count); err != nil {
			vm.log.Warn("listener failed",
				zap.Stringer("txID", tx.ID()),
				zap.Error(err),
			)
		}
	}
}

func counterTarget(action chain.Action) (codec.Address, error) {
	switch a := action.(type) {
	case *actions.Initialize:
		return a.Counter, nil
	case *actions.Increment:
		return a.Counter, nil
	default:
		return codec.EmptyAddress, fmt.Errorf("%w: %T", ErrUnknownTarget, action)
	}
}

// DeriveCounter returns the counter address of [authority] and its bump.
func (vm *VM) DeriveCounter(authority codec.Address) (codec.Address, uint8, error) {
	return vm.deriver.Derive(authority[:])
}

func (vm *VM) GetCounter(ctx context.Context, addr codec.Address) (*storage.Counter, bool, error) {
	return storage.GetCounter(ctx, state.DatabaseReader{DB: vm.db}, addr)
}

// GetTransaction returns the stored result of [txID]. If it was never
// executed, the first bool is false.
func (vm *VM) GetTransaction(
	ctx context.Context,
	txID ids.ID,
) (bool, int64, bool, uint32, uint64, error) {
	return storage.GetTransaction(ctx, vm.db, txID)
}

// ReadState reads committed values of [keys].
func (vm *VM) ReadState(_ context.Context, keys [][]byte) ([][]byte, []error) {
	values := make([][]byte, len(keys))
	errs := make([]error, len(keys))
	for i, k := range keys {
		values[i], errs[i] = vm.db.Get(k)
	}
	return values, errs
}

// Close stops accepting transactions. The database is left open for its
// owner to close.
func (vm *VM) Close() error {
	if !vm.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	vm.lock.Lock()
	defer vm.lock.Unlock()

	vm.log.Info("vm closed", zap.Uint64("accepted", vm.accepted.Load()))
	return nil
}
