// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pubsub

import (
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
)

// CreateBatchMessage packs [msgs] as count|len|msg|len|msg...
func CreateBatchMessage(maxSize int, msgs [][]byte) ([]byte, error) {
	size := consts.IntLen
	for _, msg := range msgs {
		size += codec.BytesLen(msg)
	}
	if size > maxSize {
		return nil, ErrMessageTooLarge
	}
	p := codec.NewWriter(size, maxSize)
	p.PackUint32(uint32(len(msgs)))
	for _, msg := range msgs {
		p.PackBytes(msg)
	}
	return p.Bytes(), p.Err()
}

func ParseBatchMessage(maxSize int, msg []byte) ([][]byte, error) {
	p := codec.NewReader(msg, maxSize)
	count := int(p.UnpackUint32(true))
	if err := p.Err(); err != nil {
		return nil, err
	}
	// Each message carries at least a length prefix
	if count > len(msg)/consts.IntLen {
		return nil, ErrInvalidBatchSize
	}
	msgs := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		var m []byte
		p.UnpackBytes(maxSize, false, &m)
		msgs = append(msgs, m)
	}
	if !p.Empty() {
		return nil, ErrInvalidBatchSize
	}
	return msgs, p.Err()
}
