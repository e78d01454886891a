// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
)

// NewParser returns a registry holding every counter action.
func NewParser() (*codec.TypeParser[chain.Action], error) {
	parser := codec.NewTypeParser[chain.Action]()
	errs := &wrappers.Errs{}
	errs.Add(
		// When registering new actions, ALWAYS make sure to append at the end.
		parser.Register(&Initialize{}, UnmarshalInitialize),
		parser.Register(&Increment{}, UnmarshalIncrement),
	)
	return parser, errs.Err
}
