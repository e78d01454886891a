// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/utils"
)

type deriveCmd struct {
	baseCmd

	authority *string
	program   *string
}

func (c *deriveCmd) New(parser *argparse.Parser) {
	c.init(parser, "derive", "Print the counter address of an authority")
	c.authority = c.cmd.String("a", "authority", &argparse.Options{
		Help:     "base58 public key of the authority",
		Required: true,
	})
	c.program = c.cmd.String("p", "program", &argparse.Options{
		Help: "base58 program id (defaults to the configured one)",
	})
}

func (c *deriveCmd) Run(_ context.Context, _ logging.Logger, cfg *config.Config) error {
	authority, err := codec.StringToAddress(*c.authority)
	if err != nil {
		return err
	}
	programID, err := programOrDefault(*c.program, cfg)
	if err != nil {
		return err
	}
	addr, bump, err := derive.NewCounterDeriver(programID).Derive(authority[:])
	if err != nil {
		return err
	}
	utils.Outf("{{yellow}}program:{{/}} %s\n", programID)
	utils.Outf("{{yellow}}counter:{{/}} %s {{yellow}}bump:{{/}} %d\n", addr, bump)
	return nil
}

func programOrDefault(program string, cfg *config.Config) (codec.Address, error) {
	if len(program) > 0 {
		return codec.StringToAddress(program)
	}
	return cfg.GetProgramID()
}
