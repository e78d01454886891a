// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"fmt"

	"github.com/ava-labs/countervm/consts"
)

// Typed is anything that reports the id it is registered under.
type Typed interface {
	GetTypeID() uint8
}

// TypeParser maps type ids to decoders. Ids are assigned explicitly by the
// caller so they cannot shift when a new type is registered.
type TypeParser[T Typed] struct {
	typeToIndex    map[string]uint8
	indexToDecoder map[uint8]func(*Packer) (T, error)
}

func NewTypeParser[T Typed]() *TypeParser[T] {
	return &TypeParser[T]{
		typeToIndex:    map[string]uint8{},
		indexToDecoder: map[uint8]func(*Packer) (T, error){},
	}
}

// Register adds [o] under its own type id.
func (p *TypeParser[T]) Register(o T, f func(*Packer) (T, error)) error {
	if len(p.indexToDecoder) == int(consts.MaxUint8)+1 {
		return ErrTooManyItems
	}
	index := o.GetTypeID()
	k := fmt.Sprintf("%T", o)
	if _, ok := p.typeToIndex[k]; ok {
		return ErrDuplicateItem
	}
	if _, ok := p.indexToDecoder[index]; ok {
		return ErrDuplicateItem
	}
	p.typeToIndex[k] = index
	p.indexToDecoder[index] = f
	return nil
}

func (p *TypeParser[T]) LookupType(o T) (uint8, func(*Packer) (T, error), bool) {
	index, ok := p.typeToIndex[fmt.Sprintf("%T", o)]
	if !ok {
		return 0, nil, false
	}
	return index, p.indexToDecoder[index], true
}

func (p *TypeParser[T]) LookupIndex(index uint8) (func(*Packer) (T, error), bool) {
	f, ok := p.indexToDecoder[index]
	return f, ok
}
