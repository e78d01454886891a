// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pubsub

import (
	"net/http"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ http.Handler = (*Server)(nil)

type ServerConfig struct {
	// Size of the ws read buffer
	ReadBufferSize int
	// Size of the ws write buffer
	WriteBufferSize int
	// Maximum number of pending messages to send to a peer.
	MaxPendingMessages int
	// Maximum message size in bytes allowed from peer.
	MaxReadMessageSize int64
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than pongWait.
	PingPeriod time.Duration
}

func NewDefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:     ReadBufferSize,
		WriteBufferSize:    WriteBufferSize,
		MaxPendingMessages: MaxPendingMessages,
		MaxReadMessageSize: MaxReadMessageSize,
		WriteWait:          WriteWait,
		PongWait:           PongWait,
		PingPeriod:         PingPeriod,
	}
}

// Server maintains the set of active clients and sends messages to them.
// It is served as an [http.Handler] by the API server.
type Server struct {
	log      logging.Logger
	config   *ServerConfig
	upgrader *websocket.Upgrader
	conns    *Connections
	callback Callback

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New returns a new Server instance. [callback] is called with every message
// read from a connection, if not nil.
func New(log logging.Logger, config *ServerConfig, callback Callback) *Server {
	return &Server{
		log:    log,
		config: config,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		conns:    NewConnections(),
		callback: callback,
	}
}

// ServeHTTP upgrades the request to a websocket connection and starts its
// read and write loops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("failed to upgrade",
			zap.Error(err),
		)
		return
	}
	s.addConnection(&Connection{
		s:    s,
		conn: wsConn,
		send: make(chan []byte, s.config.MaxPendingMessages),
	})
}

// Publish sends [msg] to every connection of [toConns] still held by [s]
// and returns the connections that could not be reached.
func (s *Server) Publish(msg []byte, toConns *Connections) []*Connection {
	var inactive []*Connection
	for _, conn := range toConns.Conns() {
		if !s.conns.Has(conn) {
			inactive = append(inactive, conn)
			continue
		}
		if !conn.Send(msg) {
			s.dropped.Inc()
			s.log.Verbo(
				"dropping message to subscribed connection due to too many pending messages",
			)
			continue
		}
		s.published.Inc()
	}
	return inactive
}

// Connections returns every active connection.
func (s *Server) Connections() *Connections {
	return s.conns
}

// Published is the number of messages queued to connections.
func (s *Server) Published() uint64 {
	return s.published.Load()
}

// Dropped is the number of messages that could not be queued.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Server) addConnection(conn *Connection) {
	conn.active.Store(true)
	s.conns.Add(conn)

	go conn.writePump()
	go conn.readPump()
}

func (s *Server) removeConnection(conn *Connection) {
	s.conns.Remove(conn)
}

// Close closes every connection.
func (s *Server) Close() {
	for _, conn := range s.conns.Conns() {
		s.removeConnection(conn)
		conn.deactivate()
	}
}
