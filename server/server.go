// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const MetricsEndpoint = "/metrics"

var _ Server = (*server)(nil)

type PathAdder interface {
	// AddRoute registers a route to a handler.
	AddRoute(handler http.Handler, endpoint string) error
}

// Server maintains the HTTP router
type Server interface {
	PathAdder
	// AddMetrics serves [gatherer] at [MetricsEndpoint].
	AddMetrics(gatherer prometheus.Gatherer) error
	// Dispatch starts the API server
	Dispatch() error
	// Addr is the address the server is listening on
	Addr() net.Addr
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"       yaml:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"      yaml:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"       yaml:"idleTimeout"`
}

func NewDefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type server struct {
	// log this server writes to
	log logging.Logger

	shutdownTimeout time.Duration

	// Maps endpoints to handlers
	router *router

	srv *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server.
func New(
	log logging.Logger,
	listener net.Listener,
	httpConfig HTTPConfig,
	allowedOrigins []string,
	allowedHosts []string,
	shutdownTimeout time.Duration,
) Server {
	router := newRouter()
	allowedHostsHandler := filterInvalidHosts(router, allowedHosts)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(allowedHostsHandler)
	gzipHandler := gziphandler.GzipHandler(corsHandler)

	log.Info("API created",
		zap.Strings("allowedOrigins", allowedOrigins),
		zap.Stringer("addr", listener.Addr()),
	)

	return &server{
		log:             log,
		shutdownTimeout: shutdownTimeout,
		router:          router,
		srv: &http.Server{
			Handler:           gzipHandler,
			ReadTimeout:       httpConfig.ReadTimeout,
			ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
			WriteTimeout:      httpConfig.WriteTimeout,
			IdleTimeout:       httpConfig.IdleTimeout,
		},
		listener: listener,
	}
}

func (s *server) Dispatch() error {
	return s.srv.Serve(s.listener)
}

func (s *server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *server) AddRoute(handler http.Handler, endpoint string) error {
	s.log.Info("adding route",
		zap.String("endpoint", endpoint),
	)
	return s.router.AddRouter("", endpoint, handler)
}

func (s *server) AddMetrics(gatherer prometheus.Gatherer) error {
	return s.AddRoute(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), MetricsEndpoint)
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}
