// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/utils"
)

// Cmd is a subcommand of the countervm binary. Every subcommand accepts
// -c/--config after its name:
//
//	countervm run -c config.yaml
type Cmd interface {
	New(parser *argparse.Parser)
	Run(ctx context.Context, log logging.Logger, cfg *config.Config) error
	Happened() bool
	ConfigPath() string
}

type baseCmd struct {
	cmd    *argparse.Command
	config *string
}

func (b *baseCmd) init(parser *argparse.Parser, name string, help string) {
	b.cmd = parser.NewCommand(name, help)
	b.config = b.cmd.String("c", "config", &argparse.Options{
		Help: "path to a JSON or YAML config file",
	})
}

func (b *baseCmd) Happened() bool {
	return b.cmd.Happened()
}

func (b *baseCmd) ConfigPath() string {
	return *b.config
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	parser := argparse.NewParser(consts.Name, "Authenticated per-owner counters")
	cmds := []Cmd{
		&runCmd{},
		&deriveCmd{},
		&keyCmd{},
		&submitCmd{},
		&countCmd{},
	}
	for _, c := range cmds {
		c.New(parser)
	}
	if err := parser.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		return 1
	}

	var cmd Cmd
	for _, c := range cmds {
		if c.Happened() {
			cmd = c
			break
		}
	}
	if cmd == nil {
		fmt.Fprint(os.Stderr, parser.Usage(nil))
		return 1
	}

	cfg := config.New()
	if path := cmd.ConfigPath(); len(path) > 0 {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			utils.Outf("{{red}}unable to load config:{{/}} %v\n", err)
			return 1
		}
	}
	lc, err := loggingConfig(cfg)
	if err != nil {
		utils.Outf("{{red}}invalid log config:{{/}} %v\n", err)
		return 1
	}
	logFactory := newLogFactory(lc)
	defer logFactory.Close()
	log, err := logFactory.Make(consts.Name)
	if err != nil {
		utils.Outf("{{red}}unable to create logger:{{/}} %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := cmd.Run(ctx, log, cfg); err != nil {
		utils.Outf("{{red}}error:{{/}} %v\n", err)
		return 1
	}
	return 0
}
