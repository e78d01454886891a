// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
)

var _ Rules = (*StaticRules)(nil)

type StaticRules struct {
	chainID   ids.ID
	programID codec.Address
}

func NewRules(chainID ids.ID, programID codec.Address) *StaticRules {
	return &StaticRules{chainID: chainID, programID: programID}
}

func (r *StaticRules) ChainID() ids.ID {
	return r.chainID
}

func (r *StaticRules) ProgramID() codec.Address {
	return r.programID
}
