// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
)

const BaseSize = consts.Int64Len + consts.IDLen + consts.Uint64Len

type Base struct {
	// Timestamp is when the transaction was created (in milliseconds).
	Timestamp int64 `json:"timestamp"`

	// ChainID protects against replay attacks on different VM instances.
	ChainID ids.ID `json:"chainId"`

	// Nonce lets the same actor send otherwise identical transactions.
	Nonce uint64 `json:"nonce"`
}

func (b *Base) Execute(r Rules) error {
	if b.ChainID != r.ChainID() {
		return fmt.Errorf("%w: expected=%s found=%s", ErrInvalidChainID, r.ChainID(), b.ChainID)
	}
	return nil
}

func (*Base) Size() int {
	return BaseSize
}

func (b *Base) Marshal(p *codec.Packer) {
	p.PackInt64(b.Timestamp)
	p.PackID(b.ChainID)
	p.PackUint64(b.Nonce)
}

func UnmarshalBase(p *codec.Packer) (*Base, error) {
	var base Base
	base.Timestamp = p.UnpackInt64(true)
	p.UnpackID(true, &base.ChainID)
	base.Nonce = p.UnpackUint64(false)
	return &base, p.Err()
}
