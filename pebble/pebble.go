// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"errors"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/ava-labs/countervm/state"
)

var _ state.Database = (*Database)(nil)

type Config struct {
	CacheSize                   int    `json:"cacheSize"                   yaml:"cacheSize"`
	BytesPerSync                int    `json:"bytesPerSync"                yaml:"bytesPerSync"`
	WALBytesPerSync             int    `json:"walBytesPerSync"             yaml:"walBytesPerSync"`
	MemTableStopWritesThreshold int    `json:"memTableStopWritesThreshold" yaml:"memTableStopWritesThreshold"`
	MemTableSize                uint64 `json:"memTableSize"                yaml:"memTableSize"`
	MaxOpenFiles                int    `json:"maxOpenFiles"                yaml:"maxOpenFiles"`
	ConcurrentCompactions       int    `json:"concurrentCompactions"       yaml:"concurrentCompactions"`
	Sync                        bool   `json:"sync"                        yaml:"sync"`
}

// NewDefaultConfig returns settings sized for a single small table of
// counters.
func NewDefaultConfig() Config {
	return Config{
		CacheSize:                   64 * 1024 * 1024,
		BytesPerSync:                1024 * 1024,
		WALBytesPerSync:             1024 * 1024,
		MemTableStopWritesThreshold: 8,
		MemTableSize:                16 * 1024 * 1024,
		MaxOpenFiles:                1_024,
		ConcurrentCompactions:       1,
		Sync:                        true,
	}
}

// Database is a [state.Database] backed by pebble. Batches are applied with
// a single pebble commit.
type Database struct {
	db           *pebble.DB
	writeOptions *pebble.WriteOptions
	metrics      *metrics

	closed  atomic.Bool
	closing chan struct{}
	done    sync.WaitGroup
}

func New(file string, cfg Config) (*Database, *prometheus.Registry, error) {
	registry, metrics, err := newMetrics()
	if err != nil {
		return nil, nil, err
	}
	d := &Database{
		writeOptions: &pebble.WriteOptions{Sync: cfg.Sync},
		metrics:      metrics,
		closing:      make(chan struct{}),
	}
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(int64(cfg.CacheSize)),
		BytesPerSync:                cfg.BytesPerSync,
		Comparer:                    pebble.DefaultComparer,
		WALBytesPerSync:             cfg.WALBytesPerSync,
		MemTableStopWritesThreshold: cfg.MemTableStopWritesThreshold,
		MemTableSize:                cfg.MemTableSize,
		MaxOpenFiles:                cfg.MaxOpenFiles,
		MaxConcurrentCompactions:    func() int { return cfg.ConcurrentCompactions },
		Levels:                      make([]pebble.LevelOptions, 7),
	}
	opts.Experimental.ReadSamplingMultiplier = -1 // explicitly disable seek compaction
	for i := 0; i < len(opts.Levels); i++ {
		l := &opts.Levels[i]
		l.BlockSize = 32 * 1024
		l.IndexBlockSize = 256 * 1024
		l.FilterPolicy = bloom.FilterPolicy(10)
		l.FilterType = pebble.TableFilter
		if i > 0 {
			l.TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	opts.Levels[6].FilterPolicy = nil
	opts.EventListener = &pebble.EventListener{
		CompactionBegin: d.onCompactionBegin,
		CompactionEnd:   d.onCompactionEnd,
		WriteStallBegin: d.onWriteStallBegin,
		WriteStallEnd:   d.onWriteStallEnd,
	}
	db, err := pebble.Open(file, opts)
	if err != nil {
		return nil, nil, err
	}
	d.db = db
	d.done.Add(1)
	go d.collectMetrics()
	return d, registry, nil
}

func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return database.ErrClosed
	}
	close(db.closing)
	db.done.Wait()
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	if db.closed.Load() {
		return false, database.ErrClosed
	}
	_, closer, err := db.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (db *Database) Get(key []byte) ([]byte, error) {
	if db.closed.Load() {
		return nil, database.ErrClosed
	}
	start := time.Now()
	defer func() {
		db.metrics.getLatency.Observe(float64(time.Since(start)))
	}()

	v, closer, err := db.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// [v] is only valid until [closer] is closed
	value := make([]byte, len(v))
	copy(value, v)
	return value, closer.Close()
}

func (db *Database) Put(key []byte, value []byte) error {
	if db.closed.Load() {
		return database.ErrClosed
	}
	return db.db.Set(key, value, db.writeOptions)
}

func (db *Database) Delete(key []byte) error {
	if db.closed.Load() {
		return database.ErrClosed
	}
	return db.db.Delete(key, db.writeOptions)
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

var _ database.Batch = (*batch)(nil)

// batch buffers writes in memory until [Write] so a failed caller never
// leaves part of a batch in pebble.
type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	if b.db.closed.Load() {
		return database.ErrClosed
	}
	pb := b.db.db.NewBatch()
	defer func() {
		_ = pb.Close()
	}()

	for _, op := range b.Ops {
		var err error
		if op.Delete {
			err = pb.Delete(op.Key, nil)
		} else {
			err = pb.Set(op.Key, op.Value, nil)
		}
		if err != nil {
			return err
		}
	}
	b.db.metrics.batchSize.Observe(float64(len(b.Ops)))
	return pb.Commit(b.db.writeOptions)
}

func (b *batch) Inner() database.Batch {
	return b
}
