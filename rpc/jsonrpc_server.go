// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
)

type JSONRPCServer struct {
	vm VM
}

func NewJSONRPCServer(vm VM) *JSONRPCServer {
	return &JSONRPCServer{vm}
}

type PingReply struct {
	Success bool `json:"success"`
}

func (j *JSONRPCServer) Ping(_ *http.Request, _ *struct{}, reply *PingReply) (err error) {
	j.vm.Logger().Info("ping")
	reply.Success = true
	return nil
}

type NetworkReply struct {
	ChainID   ids.ID        `json:"chainId"`
	ProgramID codec.Address `json:"programId"`
}

func (j *JSONRPCServer) Network(_ *http.Request, _ *struct{}, reply *NetworkReply) (err error) {
	reply.ChainID = j.vm.Rules().ChainID()
	reply.ProgramID = j.vm.Rules().ProgramID()
	return nil
}

type SubmitTxArgs struct {
	Tx []byte `json:"tx"`
}

type SubmitTxReply struct {
	TxID   ids.ID        `json:"txId"`
	Result *chain.Result `json:"result"`
}

// SubmitTx executes a signed transaction. A tx that was executed returns its
// result even if the action failed. A tx rejected before execution returns
// an error.
func (j *JSONRPCServer) SubmitTx(
	req *http.Request,
	args *SubmitTxArgs,
	reply *SubmitTxReply,
) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.SubmitTx")
	defer span.End()

	tx, err := chain.ParseTx(args.Tx, j.vm.Registry())
	if err != nil {
		return fmt.Errorf("%w: unable to unmarshal on public service", err)
	}
	reply.TxID = tx.ID()
	results, errs := j.vm.Submit(ctx, []*chain.Transaction{tx})
	if errs[0] != nil {
		return fmt.Errorf("%w: %w", ErrTxRejected, errs[0])
	}
	reply.Result = results[0]
	return nil
}

type SubmitTxsArgs struct {
	Txs []byte `json:"txs"`
}

// SubmittedTx is the outcome of one tx of a [SubmitTxsArgs] batch. Exactly
// one of Result and Error is set.
type SubmittedTx struct {
	TxID   ids.ID        `json:"txId"`
	Result *chain.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type SubmitTxsReply struct {
	Txs []SubmittedTx `json:"txs"`
}

// SubmitTxs executes a list of signed transactions encoded with
// [chain.MarshalTxs], in order. Txs rejected before execution are reported
// per tx rather than failing the call.
func (j *JSONRPCServer) SubmitTxs(
	req *http.Request,
	args *SubmitTxsArgs,
	reply *SubmitTxsReply,
) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.SubmitTxs")
	defer span.End()

	txs, results, errs, err := j.vm.SubmitBytes(ctx, args.Txs)
	if err != nil {
		return fmt.Errorf("%w: unable to unmarshal on public service", err)
	}
	reply.Txs = make([]SubmittedTx, len(txs))
	for i, tx := range txs {
		reply.Txs[i].TxID = tx.ID()
		if errs[i] != nil {
			reply.Txs[i].Error = errs[i].Error()
			continue
		}
		reply.Txs[i].Result = results[i]
	}
	return nil
}

type DeriveAddressArgs struct {
	Authority codec.Address `json:"authority"`
}

type DeriveAddressReply struct {
	Address codec.Address `json:"address"`
	Bump    uint8         `json:"bump"`
}

func (j *JSONRPCServer) DeriveAddress(
	_ *http.Request,
	args *DeriveAddressArgs,
	reply *DeriveAddressReply,
) error {
	addr, bump, err := j.vm.DeriveCounter(args.Authority)
	if err != nil {
		return err
	}
	reply.Address = addr
	reply.Bump = bump
	return nil
}

type CounterArgs struct {
	Authority codec.Address `json:"authority"`
}

type CounterReply struct {
	Address codec.Address `json:"address"`
	Exists  bool          `json:"exists"`
	Count   uint64        `json:"count"`
}

// Counter derives the counter address of an authority and reads it.
func (j *JSONRPCServer) Counter(req *http.Request, args *CounterArgs, reply *CounterReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.Counter")
	defer span.End()

	addr, _, err := j.vm.DeriveCounter(args.Authority)
	if err != nil {
		return err
	}
	counter, exists, err := j.vm.GetCounter(ctx, addr)
	if err != nil {
		j.vm.Logger().Warn("unable to read counter",
			zap.Stringer("address", addr),
			zap.Error(err),
		)
		return err
	}
	reply.Address = addr
	reply.Exists = exists
	if exists {
		reply.Count = counter.Count
	}
	return nil
}

type TxArgs struct {
	TxID ids.ID `json:"txId"`
}

type TxReply struct {
	Timestamp int64  `json:"timestamp"`
	Success   bool   `json:"success"`
	Code      uint32 `json:"code"`
	Units     uint64 `json:"units"`
}

func (j *JSONRPCServer) Tx(req *http.Request, args *TxArgs, reply *TxReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.Tx")
	defer span.End()

	found, t, success, code, units, err := j.vm.GetTransaction(ctx, args.TxID)
	if err != nil {
		return err
	}
	if !found {
		return ErrTxNotFound
	}
	reply.Timestamp = t
	reply.Success = success
	reply.Code = code
	reply.Units = units
	return nil
}
