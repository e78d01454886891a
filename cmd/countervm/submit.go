// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/utils"
)

const (
	initializeAction = "initialize"
	incrementAction  = "increment"
)

var ErrUnknownAction = errors.New("unknown action")

type submitCmd struct {
	baseCmd

	uri    *string
	key    *string
	hexKey *string
	action *string
	nonce  *int
}

func (c *submitCmd) New(parser *argparse.Parser) {
	c.init(parser, "submit", "Sign and submit a counter action")
	c.uri = c.cmd.String("u", "uri", &argparse.Options{
		Help: "node uri (defaults to the configured listen address)",
	})
	c.key = c.cmd.String("k", "key", &argparse.Options{
		Help: "file holding the authority private key",
	})
	c.hexKey = c.cmd.String("x", "hex-key", &argparse.Options{
		Help: "hex encoded authority private key",
	})
	c.action = c.cmd.Selector("a", "action", []string{initializeAction, incrementAction}, &argparse.Options{
		Help:     "action to submit",
		Required: true,
	})
	c.nonce = c.cmd.Int("n", "nonce", &argparse.Options{
		Help: "transaction nonce (defaults to the current time in nanoseconds)",
	})
}

func (c *submitCmd) Run(ctx context.Context, log logging.Logger, cfg *config.Config) error {
	priv, ok, err := loadPrivateKey(*c.key, *c.hexKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissingKey
	}
	factory := auth.NewED25519Factory(priv)
	cli, err := rpc.NewJSONRPCClient(uriOrDefault(*c.uri, cfg))
	if err != nil {
		return err
	}
	nonce := uint64(time.Now().UnixNano())
	if *c.nonce > 0 {
		nonce = uint64(*c.nonce)
	}

	var (
		txID   ids.ID
		result *chain.Result
	)
	switch *c.action {
	case initializeAction:
		txID, result, err = cli.Initialize(ctx, factory, nonce)
	case incrementAction:
		txID, result, err = cli.Increment(ctx, factory, nonce)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, *c.action)
	}
	if err != nil {
		return err
	}
	log.Debug("submitted transaction",
		zap.Stringer("txID", txID),
		zap.String("action", *c.action),
		zap.Uint64("nonce", nonce),
	)
	if !result.Success {
		utils.Outf("{{red}}%s failed:{{/}} %s {{yellow}}code:{{/}} %d {{yellow}}txID:{{/}} %s\n", *c.action, result.Error, result.Code, txID)
		return nil
	}
	_, _, count, err := cli.Counter(ctx, factory.Address())
	if err != nil {
		return err
	}
	utils.Outf("{{green}}%s succeeded{{/}} {{yellow}}count:{{/}} %d {{yellow}}txID:{{/}} %s\n", *c.action, count, txID)
	return nil
}

func uriOrDefault(uri string, cfg *config.Config) string {
	if len(uri) > 0 {
		return uri
	}
	return "http://" + cfg.ListenAddress
}
