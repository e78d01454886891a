// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/derive"
	"github.com/ava-labs/countervm/utils"
)

var (
	ErrMissingKey      = errors.New("either --key or --hex-key must be provided")
	ErrConflictingKeys = errors.New("only one of --key or --hex-key may be provided")
)

// loadPrivateKey reads the key from [path] or decodes [hexKey]. The bool is
// false when neither is set.
func loadPrivateKey(path string, hexKey string) (ed25519.PrivateKey, bool, error) {
	switch {
	case len(path) > 0 && len(hexKey) > 0:
		return ed25519.EmptyPrivateKey, false, ErrConflictingKeys
	case len(path) > 0:
		priv, err := ed25519.LoadKey(path)
		return priv, true, err
	case len(hexKey) > 0:
		priv, err := ed25519.HexToKey(hexKey)
		return priv, true, err
	default:
		return ed25519.EmptyPrivateKey, false, nil
	}
}

type keyCmd struct {
	baseCmd

	path    *string
	program *string
}

func (c *keyCmd) New(parser *argparse.Parser) {
	c.init(parser, "key", "Create a private key and print its counter address")
	c.path = c.cmd.String("o", "out", &argparse.Options{
		Help: "file the private key is written to (prints it as hex if unset)",
	})
	c.program = c.cmd.String("p", "program", &argparse.Options{
		Help: "base58 program id (defaults to the configured one)",
	})
}

func (c *keyCmd) Run(_ context.Context, log logging.Logger, cfg *config.Config) error {
	programID, err := programOrDefault(*c.program, cfg)
	if err != nil {
		return err
	}
	priv, err := ed25519.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if len(*c.path) > 0 {
		if err := priv.Save(*c.path); err != nil {
			return err
		}
		log.Debug("created key", zap.String("path", *c.path))
	} else {
		utils.Outf("{{yellow}}private key:{{/}} %s\n", priv.ToHex())
	}
	pub := priv.PublicKey()
	addr, _, err := derive.NewCounterDeriver(programID).Derive(pub[:])
	if err != nil {
		return err
	}
	utils.Outf("{{yellow}}authority:{{/}} %s\n", pub)
	utils.Outf("{{yellow}}counter:{{/}} %s\n", addr)
	return nil
}
