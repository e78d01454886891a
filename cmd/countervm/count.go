// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/utils"
)

var ErrMissingAuthority = errors.New("one of --authority, --key or --hex-key must be provided")

type countCmd struct {
	baseCmd

	uri       *string
	authority *string
	key       *string
	hexKey    *string
}

func (c *countCmd) New(parser *argparse.Parser) {
	c.init(parser, "count", "Print the counter of an authority")
	c.uri = c.cmd.String("u", "uri", &argparse.Options{
		Help: "node uri (defaults to the configured listen address)",
	})
	c.authority = c.cmd.String("a", "authority", &argparse.Options{
		Help: "base58 public key of the authority",
	})
	c.key = c.cmd.String("k", "key", &argparse.Options{
		Help: "file holding the authority private key",
	})
	c.hexKey = c.cmd.String("x", "hex-key", &argparse.Options{
		Help: "hex encoded authority private key",
	})
}

func (c *countCmd) authorityAddress() (codec.Address, error) {
	if len(*c.authority) > 0 {
		return codec.StringToAddress(*c.authority)
	}
	priv, ok, err := loadPrivateKey(*c.key, *c.hexKey)
	if err != nil {
		return codec.EmptyAddress, err
	}
	if !ok {
		return codec.EmptyAddress, ErrMissingAuthority
	}
	return auth.NewED25519Factory(priv).Address(), nil
}

func (c *countCmd) Run(ctx context.Context, _ logging.Logger, cfg *config.Config) error {
	authority, err := c.authorityAddress()
	if err != nil {
		return err
	}
	cli, err := rpc.NewJSONRPCClient(uriOrDefault(*c.uri, cfg))
	if err != nil {
		return err
	}
	addr, exists, count, err := cli.Counter(ctx, authority)
	if err != nil {
		return err
	}
	if !exists {
		utils.Outf("{{yellow}}counter %s is not initialized{{/}}\n", addr)
		return nil
	}
	utils.Outf("{{yellow}}counter:{{/}} %s {{yellow}}count:{{/}} %d\n", addr, count)
	return nil
}
