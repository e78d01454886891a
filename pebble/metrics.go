// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"time"

	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace       = "pebble"
	metricsInterval = 10 * time.Second
)

type metrics struct {
	delayStart time.Time
	writeStall metric.Averager

	getLatency metric.Averager
	batchSize  metric.Averager

	l0Compactions     prometheus.Counter
	otherCompactions  prometheus.Counter
	activeCompactions prometheus.Gauge

	tombstoneCount    prometheus.Gauge
	obsoleteTableSize prometheus.Gauge
	obsoleteWALSize   prometheus.Gauge
	diskUsage         prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func newMetrics() (*prometheus.Registry, *metrics, error) {
	r := prometheus.NewRegistry()
	m := &metrics{
		l0Compactions:     newCounter("l0_compactions", "number of l0 compactions"),
		otherCompactions:  newCounter("other_compactions", "number of l1+ compactions"),
		activeCompactions: newGauge("active_compactions", "number of active compactions"),
		tombstoneCount:    newGauge("tombstone_count", "approximate count of internal tombstones"),
		obsoleteTableSize: newGauge("obsolete_table_size", "number of bytes present in tables no longer referenced by the db"),
		obsoleteWALSize:   newGauge("obsolete_wal_size", "number of bytes present in WAL no longer needed by the db"),
		diskUsage:         newGauge("disk_usage", "number of bytes used by the db on disk"),
	}
	errs := wrappers.Errs{}
	var err error
	m.writeStall, err = metric.NewAverager(namespace+"_write_stall", "time spent waiting for disk write", r)
	errs.Add(err)
	m.getLatency, err = metric.NewAverager(namespace+"_read_latency", "time spent waiting for db get", r)
	errs.Add(err)
	m.batchSize, err = metric.NewAverager(namespace+"_batch_size", "number of operations per committed batch", r)
	errs.Add(err)
	errs.Add(
		r.Register(m.l0Compactions),
		r.Register(m.otherCompactions),
		r.Register(m.activeCompactions),
		r.Register(m.tombstoneCount),
		r.Register(m.obsoleteTableSize),
		r.Register(m.obsoleteWALSize),
		r.Register(m.diskUsage),
	)
	return r, m, errs.Err
}

func (db *Database) onCompactionBegin(info pebble.CompactionInfo) {
	db.metrics.activeCompactions.Inc()
	l0 := info.Input[0]
	if l0.Level == 0 {
		db.metrics.l0Compactions.Inc()
	} else {
		db.metrics.otherCompactions.Inc()
	}
}

func (db *Database) onCompactionEnd(pebble.CompactionInfo) {
	db.metrics.activeCompactions.Dec()
}

func (db *Database) onWriteStallBegin(pebble.WriteStallBeginInfo) {
	db.metrics.delayStart = time.Now()
}

func (db *Database) onWriteStallEnd() {
	db.metrics.writeStall.Observe(float64(time.Since(db.metrics.delayStart)))
}

func (db *Database) collectMetrics() {
	defer db.done.Done()

	t := time.NewTicker(metricsInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			metrics := db.db.Metrics()
			db.metrics.tombstoneCount.Set(float64(metrics.Keys.TombstoneCount))
			db.metrics.obsoleteTableSize.Set(float64(metrics.Table.ObsoleteSize))
			db.metrics.obsoleteWALSize.Set(float64(metrics.WAL.ObsoletePhysicalSize))
			db.metrics.diskUsage.Set(float64(metrics.DiskSpaceUsage()))
		case <-db.closing:
			return
		}
	}
}
