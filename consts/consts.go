// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

// Name is used by the JSON-RPC service and the websocket feed.
const Name = "countervm"

const (
	IDLen     = 32
	ByteLen   = 1
	BoolLen   = 1
	MaxUint8  = ^uint8(0)
	MaxUint16 = ^uint16(0)
	MaxUint   = ^uint(0)
	MaxInt    = int(MaxUint >> 1)
	IntLen    = 4
	Uint8Len  = 1
	Uint16Len = 2
	Uint32Len = 4
	Int64Len  = 8
	Uint64Len = 8
	MaxUint64 = ^uint64(0)

	// NetworkSizeLimit bounds any transaction read off the wire.
	NetworkSizeLimit = 2_044_723 // 1.95 MiB
)
