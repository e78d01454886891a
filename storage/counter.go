// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/crypto/ed25519"
)

const (
	DiscriminatorLen = 8

	// CounterSpace is the size of an encoded [Counter].
	CounterSpace = DiscriminatorLen + ed25519.PublicKeyLen + consts.Uint64Len
)

// CounterDiscriminator prefixes every encoded [Counter] so a value of another
// account type is never read as a counter.
var CounterDiscriminator = accountDiscriminator("Counter")

func accountDiscriminator(name string) [DiscriminatorLen]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorLen]byte
	copy(d[:], h[:DiscriminatorLen])
	return d
}

// Counter is the record stored at a counter address. Only [Authority] may
// change it and [Count] only ever increases.
type Counter struct {
	Authority ed25519.PublicKey
	Count     uint64
}

// Marshal returns the discriminator followed by the borsh encoding of c.
func (c *Counter) Marshal() ([]byte, error) {
	body, err := borsh.Serialize(*c)
	if err != nil {
		return nil, err
	}
	v := make([]byte, 0, CounterSpace)
	v = append(v, CounterDiscriminator[:]...)
	return append(v, body...), nil
}

// UnmarshalCounter decodes a value written by [Counter.Marshal].
func UnmarshalCounter(v []byte) (*Counter, error) {
	if len(v) != CounterSpace {
		return nil, fmt.Errorf("%w: length=%d", ErrInvalidCounter, len(v))
	}
	if !bytes.Equal(v[:DiscriminatorLen], CounterDiscriminator[:]) {
		return nil, ErrInvalidDiscriminator
	}
	var c Counter
	if err := borsh.Deserialize(&c, v[DiscriminatorLen:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCounter, err)
	}
	return &c, nil
}
