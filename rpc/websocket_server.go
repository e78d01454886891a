// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/pubsub"
)

// WebSocketServer streams executed transactions to subscribers and accepts
// transactions over the same connection.
type WebSocketServer struct {
	vm VM
	s  *pubsub.Server

	feedListeners *pubsub.Connections

	// Submissions over websockets still waiting on [VM.Submit], and the
	// event of each one that executed. A tx executes at most once, so its
	// event belongs to the only submission [VM.Submit] did not reject.
	txL      sync.Mutex
	inflight map[ids.ID]int
	txEvents map[ids.ID][]byte

	submitted atomic.Uint64
}

func NewWebSocketServer(vm VM, maxPendingMessages int) (*WebSocketServer, *pubsub.Server) {
	w := &WebSocketServer{
		vm:            vm,
		feedListeners: pubsub.NewConnections(),
		inflight:      map[ids.ID]int{},
		txEvents:      map[ids.ID][]byte{},
	}
	cfg := pubsub.NewDefaultServerConfig()
	cfg.MaxPendingMessages = maxPendingMessages
	w.s = pubsub.New(vm.Logger(), cfg, w.MessageCallback())
	return w, w.s
}

// Submitted is the number of transactions received over websockets.
func (w *WebSocketServer) Submitted() uint64 {
	return w.submitted.Load()
}

func (w *WebSocketServer) startSubmission(txID ids.ID) {
	w.txL.Lock()
	defer w.txL.Unlock()

	w.inflight[txID]++
}

// finishSubmission returns the event recorded for [txID] if [executed].
func (w *WebSocketServer) finishSubmission(txID ids.ID, executed bool) []byte {
	w.txL.Lock()
	defer w.txL.Unlock()

	var msg []byte
	if executed {
		msg = w.txEvents[txID]
		delete(w.txEvents, txID)
	}
	w.inflight[txID]--
	if w.inflight[txID] == 0 {
		delete(w.inflight, txID)
		delete(w.txEvents, txID)
	}
	return msg
}

func (w *WebSocketServer) recordEvent(txID ids.ID, msg []byte) {
	w.txL.Lock()
	defer w.txL.Unlock()

	if w.inflight[txID] > 0 {
		w.txEvents[txID] = msg
	}
}

// Accept publishes the execution of [tx] to feed subscribers and records it
// for the connection that submitted it.
func (w *WebSocketServer) Accept(tx *chain.Transaction, result *chain.Result, counter codec.Address, count uint64) error {
	txID := tx.ID()
	msg, err := PackEventMessage(&Event{
		TxID:    txID,
		Success: result.Success,
		Code:    result.Code,
		Counter: counter,
		Count:   count,
	})
	if err != nil {
		return err
	}
	if w.feedListeners.Len() > 0 {
		for _, conn := range w.s.Publish(msg, w.feedListeners) {
			w.feedListeners.Remove(conn)
		}
	}
	w.recordEvent(txID, msg)
	return nil
}

func (w *WebSocketServer) sendTo(c *pubsub.Connection, msg []byte) {
	conns := pubsub.NewConnections()
	conns.Add(c)
	w.s.Publish(msg, conns)
}

func (w *WebSocketServer) reject(c *pubsub.Connection, txID ids.ID, rerr error) {
	msg, err := PackRejectionMessage(txID, rerr)
	if err != nil {
		w.vm.Logger().Error("unable to pack rejection", zap.Error(err))
		return
	}
	w.sendTo(c, msg)
}

func (w *WebSocketServer) submit(msg []byte, c *pubsub.Connection) {
	ctx, span := w.vm.Tracer().Start(context.Background(), "WebSocketServer.submit")
	defer span.End()

	log := w.vm.Logger()
	tx, err := chain.ParseTx(msg, w.vm.Registry())
	if err != nil {
		log.Debug("failed to unmarshal tx",
			zap.Int("len", len(msg)),
			zap.Error(err),
		)
		return
	}
	w.submitted.Inc()
	txID := tx.ID()

	// Registered before submission so the event cannot be missed
	w.startSubmission(txID)
	_, errs := w.vm.Submit(ctx, []*chain.Transaction{tx})
	event := w.finishSubmission(txID, errs[0] == nil)
	if errs[0] != nil {
		log.Debug("failed to submit tx",
			zap.Stringer("txID", txID),
			zap.Error(errs[0]),
		)
		w.reject(c, txID, errs[0])
		return
	}
	if event != nil {
		w.sendTo(c, event)
	}
}

func (w *WebSocketServer) MessageCallback() pubsub.Callback {
	log := w.vm.Logger()

	return func(msgBytes []byte, c *pubsub.Connection) {
		// Check empty messages
		if len(msgBytes) == 0 {
			log.Debug("failed to unmarshal msg",
				zap.Int("len", len(msgBytes)),
			)
			return
		}

		switch msgBytes[0] {
		case FeedMode:
			w.feedListeners.Add(c)
			log.Debug("added feed listener")
		case TxMode:
			w.submit(msgBytes[1:], c)
		default:
			log.Debug("unexpected message type",
				zap.Int("len", len(msgBytes)),
				zap.Uint8("mode", msgBytes[0]),
			)
		}
	}
}
