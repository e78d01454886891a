// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/requester"
)

type JSONRPCClient struct {
	requester *requester.EndpointRequester
	registry  chain.Registry

	chainID   ids.ID
	programID codec.Address
}

func NewJSONRPCClient(uri string) (*JSONRPCClient, error) {
	actionParser, err := actions.NewParser()
	if err != nil {
		return nil, err
	}
	authParser, err := auth.NewParser()
	if err != nil {
		return nil, err
	}
	uri = strings.TrimSuffix(uri, "/")
	uri += JSONRPCEndpoint
	return &JSONRPCClient{
		requester: requester.New(uri, Name),
		registry:  chain.NewRegistry(actionParser, authParser),
	}, nil
}

func (cli *JSONRPCClient) Ping(ctx context.Context) (bool, error) {
	resp := new(PingReply)
	err := cli.requester.SendRequest(ctx,
		"ping",
		nil,
		resp,
	)
	return resp.Success, err
}

// Network returns the chain id and program id of the node. They are cached
// after the first call.
func (cli *JSONRPCClient) Network(ctx context.Context) (ids.ID, codec.Address, error) {
	if cli.chainID != ids.Empty {
		return cli.chainID, cli.programID, nil
	}

	resp := new(NetworkReply)
	err := cli.requester.SendRequest(
		ctx,
		"network",
		nil,
		resp,
	)
	if err != nil {
		return ids.Empty, codec.EmptyAddress, err
	}
	cli.chainID = resp.ChainID
	cli.programID = resp.ProgramID
	return resp.ChainID, resp.ProgramID, nil
}

func (cli *JSONRPCClient) SubmitTx(ctx context.Context, d []byte) (ids.ID, *chain.Result, error) {
	resp := new(SubmitTxReply)
	err := cli.requester.SendRequest(
		ctx,
		"submitTx",
		&SubmitTxArgs{Tx: d},
		resp,
	)
	return resp.TxID, resp.Result, err
}

// SubmitTxs submits [txs] in one call. The outcome of each tx is returned at
// its index.
func (cli *JSONRPCClient) SubmitTxs(ctx context.Context, txs []*chain.Transaction) ([]SubmittedTx, error) {
	raw, err := chain.MarshalTxs(txs)
	if err != nil {
		return nil, err
	}
	resp := new(SubmitTxsReply)
	err = cli.requester.SendRequest(
		ctx,
		"submitTxs",
		&SubmitTxsArgs{Txs: raw},
		resp,
	)
	return resp.Txs, err
}

func (cli *JSONRPCClient) DeriveAddress(ctx context.Context, authority codec.Address) (codec.Address, uint8, error) {
	resp := new(DeriveAddressReply)
	err := cli.requester.SendRequest(
		ctx,
		"deriveAddress",
		&DeriveAddressArgs{Authority: authority},
		resp,
	)
	return resp.Address, resp.Bump, err
}

// Counter returns the counter owned by [authority] and whether it exists.
func (cli *JSONRPCClient) Counter(ctx context.Context, authority codec.Address) (codec.Address, bool, uint64, error) {
	resp := new(CounterReply)
	err := cli.requester.SendRequest(
		ctx,
		"counter",
		&CounterArgs{Authority: authority},
		resp,
	)
	return resp.Address, resp.Exists, resp.Count, err
}

func (cli *JSONRPCClient) Tx(ctx context.Context, txID ids.ID) (*TxReply, error) {
	resp := new(TxReply)
	err := cli.requester.SendRequest(
		ctx,
		"tx",
		&TxArgs{TxID: txID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CounterAddress derives the counter of [authority] locally using the
// program id of the node.
func (cli *JSONRPCClient) CounterAddress(ctx context.Context, authority codec.Address) (codec.Address, uint8, error) {
	_, programID, err := cli.Network(ctx)
	if err != nil {
		return codec.EmptyAddress, 0, err
	}
	return derive.NewCounterDeriver(programID).Derive(authority[:])
}

// GenerateTransaction signs [action] for the chain of the node. [nonce]
// distinguishes otherwise identical transactions.
func (cli *JSONRPCClient) GenerateTransaction(
	ctx context.Context,
	action chain.Action,
	factory chain.AuthFactory,
	nonce uint64,
) (*chain.Transaction, error) {
	chainID, _, err := cli.Network(ctx)
	if err != nil {
		return nil, err
	}
	tx := chain.NewTx(&chain.Base{
		Timestamp: time.Now().UnixMilli(),
		ChainID:   chainID,
		Nonce:     nonce,
	}, action)
	return tx.Sign(factory, cli.registry)
}

// Initialize creates the counter of [factory] and returns the submitted tx
// id with its result.
func (cli *JSONRPCClient) Initialize(
	ctx context.Context,
	factory *auth.ED25519Factory,
	nonce uint64,
) (ids.ID, *chain.Result, error) {
	counter, _, err := cli.CounterAddress(ctx, factory.Address())
	if err != nil {
		return ids.Empty, nil, err
	}
	return cli.submitAction(ctx, &actions.Initialize{Counter: counter}, factory, nonce)
}

// Increment increments the counter of [factory].
func (cli *JSONRPCClient) Increment(
	ctx context.Context,
	factory *auth.ED25519Factory,
	nonce uint64,
) (ids.ID, *chain.Result, error) {
	counter, _, err := cli.CounterAddress(ctx, factory.Address())
	if err != nil {
		return ids.Empty, nil, err
	}
	return cli.submitAction(ctx, &actions.Increment{Counter: counter}, factory, nonce)
}

func (cli *JSONRPCClient) submitAction(
	ctx context.Context,
	action chain.Action,
	factory chain.AuthFactory,
	nonce uint64,
) (ids.ID, *chain.Result, error) {
	tx, err := cli.GenerateTransaction(ctx, action, factory, nonce)
	if err != nil {
		return ids.Empty, nil, err
	}
	return cli.SubmitTx(ctx, tx.Bytes())
}
