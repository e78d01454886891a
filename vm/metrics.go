// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"strconv"

	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "counter"

type Metrics struct {
	txsSubmitted   prometheus.Counter
	txsRejected    prometheus.Counter
	txsAccepted    prometheus.Counter
	initialized    prometheus.Counter
	incremented    prometheus.Counter
	failed         prometheus.Counter
	failureReasons *prometheus.CounterVec
	waitSignatures metric.Averager
	execute        metric.Averager
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func newMetrics() (*prometheus.Registry, *Metrics, error) {
	r := prometheus.NewRegistry()
	m := &Metrics{
		txsSubmitted: newCounter("txs_submitted", "number of txs submitted"),
		txsRejected:  newCounter("txs_rejected", "number of txs rejected before execution"),
		txsAccepted:  newCounter("txs_accepted", "number of txs executed and stored"),
		initialized:  newCounter("initialized", "number of counters initialized"),
		incremented:  newCounter("incremented", "number of successful increments"),
		failed:       newCounter("failed", "number of txs whose action failed"),
		failureReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failure_reasons",
			Help:      "number of failed actions by error code",
		}, []string{"code"}),
	}
	errs := wrappers.Errs{}
	var err error
	m.waitSignatures, err = metric.NewAverager(
		namespace+"_wait_signatures",
		"time spent waiting for signature verification",
		r,
	)
	errs.Add(err)
	m.execute, err = metric.NewAverager(
		namespace+"_execute",
		"time spent executing and committing a tx",
		r,
	)
	errs.Add(err)
	errs.Add(
		r.Register(m.txsSubmitted),
		r.Register(m.txsRejected),
		r.Register(m.txsAccepted),
		r.Register(m.initialized),
		r.Register(m.incremented),
		r.Register(m.failed),
		r.Register(m.failureReasons),
	)
	return r, m, errs.Err
}

func (m *Metrics) recordFailure(code uint32) {
	m.failed.Inc()
	m.failureReasons.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}
