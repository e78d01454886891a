// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pubsub

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Callback is called by the [Server] with every message a connection reads.
type Callback func([]byte, *Connection)

// Connection is a websocket client of a [Server].
type Connection struct {
	s *Server

	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Guards [send] so it is never written after close.
	sendL  sync.RWMutex
	active atomic.Bool
}

func (c *Connection) isActive() bool {
	return c.active.Load()
}

func (c *Connection) deactivate() {
	c.sendL.Lock()
	defer c.sendL.Unlock()

	if c.active.CompareAndSwap(true, false) {
		close(c.send)
	}
}

// Send queues [msg] for [c] and returns false if it was dropped.
func (c *Connection) Send(msg []byte) bool {
	c.sendL.RLock()
	defer c.sendL.RUnlock()

	if !c.isActive() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.s.log.Debug("unable to send message", zap.Error(ErrTooManyMessages))
		return false
	}
}

// readPump reads messages from the connection and hands them to the
// callback. There is at most one reader per connection.
func (c *Connection) readPump() {
	defer func() {
		c.s.removeConnection(c)
		c.deactivate()

		// close is called by both the writePump and the readPump so one of them
		// will always error
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.s.config.MaxReadMessageSize)
	// SetReadDeadline returns an error if the connection is corrupted
	if err := c.conn.SetReadDeadline(time.Now().Add(c.s.config.PongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.s.config.PongWait))
	})
	for {
		_, reader, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.s.log.Debug("unexpected close in websockets",
					zap.Error(err),
				)
			}
			return
		}
		if c.s.callback == nil {
			continue
		}
		msg, err := io.ReadAll(reader)
		if err != nil {
			c.s.log.Debug("unexpected error reading bytes from websockets",
				zap.Error(err),
			)
			return
		}
		c.s.callback(msg, c)
	}
}

// writePump writes queued messages and pings to the connection. There is at
// most one writer per connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.s.config.PingPeriod)
	defer func() {
		c.s.removeConnection(c)
		c.deactivate()
		ticker.Stop()

		// close is called by both the writePump and the readPump so one of them
		// will always error
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.s.config.WriteWait)); err != nil {
				c.s.log.Debug("closing the connection",
					zap.String("reason", "failed to set the write deadline"),
					zap.Error(err),
				)
				return
			}
			if !ok {
				// The hub closed the channel. Attempt to close the connection
				// gracefully.
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.s.log.Debug("closing the connection",
					zap.String("reason", "failed to write message"),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.s.config.WriteWait)); err != nil {
				c.s.log.Debug("closing the connection",
					zap.String("reason", "failed to set the write deadline"),
					zap.Error(err),
				)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
