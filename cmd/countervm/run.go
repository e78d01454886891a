// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/akamensky/argparse"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/pebble"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/server"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/trace"
	"github.com/ava-labs/countervm/vm"
)

const shutdownTimeout = 10 * time.Second

var _ vm.Listener = (*rpc.WebSocketServer)(nil)

type runCmd struct {
	baseCmd
}

func (c *runCmd) New(parser *argparse.Parser) {
	c.init(parser, "run", "Serve the JSON-RPC and websocket APIs")
}

func (*runCmd) Run(ctx context.Context, log logging.Logger, cfg *config.Config) error {
	chainID, err := cfg.GetChainID()
	if err != nil {
		return err
	}
	programID, err := cfg.GetProgramID()
	if err != nil {
		return err
	}
	tracer, err := trace.New(cfg.GetTraceConfig())
	if err != nil {
		return err
	}
	defer func() {
		_ = tracer.Close()
	}()

	var (
		db        state.Database
		gatherers = prometheus.Gatherers{}
	)
	if len(cfg.DatabaseDir) == 0 {
		log.Warn("no database directory configured, state will not survive restart")
		db = memdb.New()
	} else {
		pdb, registry, err := pebble.New(cfg.DatabaseDir, cfg.Pebble)
		if err != nil {
			return err
		}
		db = pdb
		gatherers = append(gatherers, registry)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("unable to close database", zap.Error(err))
		}
	}()

	v, registry, err := vm.New(log, tracer, db, vm.Config{
		ChainID:     chainID,
		ProgramID:   programID,
		VerifyCores: cfg.VerifyCores,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = v.Close()
	}()
	gatherers = append(gatherers, registry)

	jsonHandler, err := rpc.NewJSONRPCHandler(rpc.Name, rpc.NewJSONRPCServer(v))
	if err != nil {
		return err
	}
	ws, pubsubServer := rpc.NewWebSocketServer(v, cfg.StreamingBacklogSize)
	v.AddListener(ws)
	defer pubsubServer.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	srv := server.New(
		log,
		listener,
		server.NewDefaultHTTPConfig(),
		cfg.AllowedOrigins,
		cfg.AllowedHosts,
		shutdownTimeout,
	)
	if err := srv.AddRoute(jsonHandler, rpc.JSONRPCEndpoint); err != nil {
		return err
	}
	if err := srv.AddRoute(pubsubServer, rpc.WebSocketEndpoint); err != nil {
		return err
	}
	if cfg.MetricsEnabled {
		if err := srv.AddMetrics(gatherers); err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Dispatch()
	}()
	log.Info("serving",
		zap.Stringer("addr", srv.Addr()),
		zap.Stringer("chainID", chainID),
		zap.Stringer("programID", programID),
	)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		err = nil
	case err = <-errc:
	}
	if serr := srv.Shutdown(); serr != nil {
		log.Warn("unclean server shutdown", zap.Error(serr))
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
