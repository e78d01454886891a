// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
)

// Messages sent by clients start with a mode byte:
//   - FeedMode subscribes the connection to every [Event]
//   - TxMode is followed by a signed tx to execute
//
// Messages sent by the server start with:
//   - FeedMode followed by an [Event]
//   - TxMode followed by a [Rejection] of a tx the connection submitted
const (
	FeedMode byte = 0
	TxMode   byte = 1
)

const (
	eventSize = consts.IDLen + consts.BoolLen + consts.Uint32Len + codec.AddressLen + consts.Uint64Len
	maxErrLen = 1_024
)

// Event describes an executed transaction and the counter it targeted.
type Event struct {
	TxID    ids.ID        `json:"txId"`
	Success bool          `json:"success"`
	Code    uint32        `json:"code"`
	Counter codec.Address `json:"counter"`
	Count   uint64        `json:"count"`
}

// Rejection is sent to the submitter of a tx that was not executed.
type Rejection struct {
	TxID  ids.ID `json:"txId"`
	Error string `json:"error"`
}

func PackEventMessage(e *Event) ([]byte, error) {
	p := codec.NewWriter(consts.ByteLen+eventSize, consts.ByteLen+eventSize)
	p.PackByte(FeedMode)
	p.PackID(e.TxID)
	p.PackBool(e.Success)
	p.PackUint32(e.Code)
	p.PackAddress(e.Counter)
	p.PackUint64(e.Count)
	return p.Bytes(), p.Err()
}

func unpackEvent(p *codec.Packer) (*Event, error) {
	var e Event
	p.UnpackID(true, &e.TxID)
	e.Success = p.UnpackBool()
	e.Code = p.UnpackUint32(false)
	p.UnpackAddress(&e.Counter)
	e.Count = p.UnpackUint64(false)
	if !p.Empty() {
		return nil, chain.ErrInvalidObject
	}
	return &e, p.Err()
}

func PackRejectionMessage(txID ids.ID, err error) ([]byte, error) {
	msg := err.Error()
	if len(msg) > maxErrLen {
		msg = msg[:maxErrLen]
	}
	size := consts.ByteLen + consts.IDLen + codec.StringLen(msg)
	p := codec.NewWriter(size, size)
	p.PackByte(TxMode)
	p.PackID(txID)
	p.PackBytes([]byte(msg))
	return p.Bytes(), p.Err()
}

func unpackRejection(p *codec.Packer) (*Rejection, error) {
	var (
		r   Rejection
		msg []byte
	)
	p.UnpackID(true, &r.TxID)
	p.UnpackBytes(maxErrLen, false, &msg)
	if !p.Empty() {
		return nil, chain.ErrInvalidObject
	}
	r.Error = string(msg)
	return &r, p.Err()
}

// UnpackServerMessage parses a message written by the server. Exactly one of
// the returned event or rejection is set.
func UnpackServerMessage(msg []byte) (*Event, *Rejection, error) {
	p := codec.NewReader(msg, consts.NetworkSizeLimit)
	switch mode := p.UnpackByte(); mode {
	case FeedMode:
		e, err := unpackEvent(p)
		return e, nil, err
	case TxMode:
		r, err := unpackRejection(p)
		return nil, r, err
	default:
		if err := p.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrUnexpectedMessage
	}
}
