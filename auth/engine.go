// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
)

type Engine interface {
	GetBatchVerifier(cores int, count int) chain.AuthBatchVerifier
}

type Engines map[uint8]Engine

// DefaultEngines returns an [Engine] for every auth type that supports batch
// verification.
func DefaultEngines() Engines {
	return Engines{
		ED25519ID: &ED25519AuthEngine{},
	}
}

func (e Engines) GetAuthBatchVerifier(authTypeID uint8, cores int, count int) (chain.AuthBatchVerifier, bool) {
	engine, ok := e[authTypeID]
	if !ok {
		return nil, false
	}
	return engine.GetBatchVerifier(cores, count), true
}

// NewParser returns a registry holding every auth type.
func NewParser() (*codec.TypeParser[chain.Auth], error) {
	parser := codec.NewTypeParser[chain.Auth]()
	errs := &wrappers.Errs{}
	errs.Add(
		// When registering new auth, ALWAYS make sure to append at the end.
		parser.Register(&ED25519{}, UnmarshalED25519),
	)
	return parser, errs.Err
}
