// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ava-labs/countervm/chain"
)

type WebSocketClient struct {
	conn *websocket.Conn

	wl sync.Mutex
	rl sync.Mutex
	cl sync.Once
}

// NewWebSocketClient dials the websocket feed of the node at [uri].
func NewWebSocketClient(uri string) (*WebSocketClient, error) {
	uri = strings.TrimSuffix(uri, "/")
	uri = strings.Replace(uri, "http", "ws", 1)
	uri += WebSocketEndpoint
	conn, resp, err := websocket.DefaultDialer.Dial(uri, nil)
	if err != nil {
		return nil, err
	}
	// not using resp for now
	_ = resp.Body.Close()
	return &WebSocketClient{conn: conn}, nil
}

func (c *WebSocketClient) write(msg []byte) error {
	c.wl.Lock()
	defer c.wl.Unlock()

	return c.conn.WriteMessage(websocket.BinaryMessage, msg)
}

// RegisterFeed subscribes to every executed transaction.
func (c *WebSocketClient) RegisterFeed() error {
	return c.write([]byte{FeedMode})
}

// SubmitTx sends [tx] to be executed. Its [Event] or [Rejection] is
// delivered to [Listen].
func (c *WebSocketClient) SubmitTx(tx *chain.Transaction) error {
	return c.write(append([]byte{TxMode}, tx.Bytes()...))
}

// Listen blocks until the next message from the server. Exactly one of the
// event or the rejection is set when the error is nil.
func (c *WebSocketClient) Listen() (*Event, *Rejection, error) {
	c.rl.Lock()
	defer c.rl.Unlock()

	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	return UnpackServerMessage(msg)
}

// Close closes [c]'s connection to the server.
func (c *WebSocketClient) Close() error {
	var err error
	c.cl.Do(func() {
		err = c.conn.Close()
	})
	return err
}
