// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package derive computes program addresses: 32-byte addresses that are a
// pure function of a program id and a list of seeds and that no private key
// can sign for.
package derive

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
)

const (
	// MaxSeeds is the number of seeds accepted, including the bump seed.
	MaxSeeds = 16
	// MaxSeedLen is the largest seed accepted, in bytes.
	MaxSeedLen = 32

	// CounterTag namespaces counter addresses from any other address derived
	// under the same program.
	CounterTag = "counter"

	addressMarker = "ProgramDerivedAddress"
)

// CreateProgramAddress hashes [seeds] and [program] into an address. It fails
// with [ErrInvalidSeeds] when the result is a point on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, program codec.Address) (codec.Address, error) {
	if len(seeds) > MaxSeeds {
		return codec.EmptyAddress, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return codec.EmptyAddress, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLengthExceeded, i, len(seed))
		}
		_, _ = h.Write(seed)
	}
	_, _ = h.Write(program[:])
	_, _ = h.Write([]byte(addressMarker))

	var addr codec.Address
	copy(addr[:], h.Sum(nil))
	if OnCurve(addr[:]) {
		return codec.EmptyAddress, ErrInvalidSeeds
	}
	return addr, nil
}

type createFunc func(seeds [][]byte, program codec.Address) (codec.Address, error)

// FindProgramAddress searches bump seeds from 255 down to 0 and returns the
// first off-curve address with the bump that produced it. If every bump
// yields an on-curve point it fails with [ErrNoViableBump].
func FindProgramAddress(seeds [][]byte, program codec.Address) (codec.Address, uint8, error) {
	return findProgramAddress(seeds, program, CreateProgramAddress)
}

func findProgramAddress(seeds [][]byte, program codec.Address, create createFunc) (codec.Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		// No room left for the bump seed
		return codec.EmptyAddress, 0, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	bumped := make([][]byte, len(seeds)+1)
	copy(bumped, seeds)
	bump := []byte{0}
	bumped[len(seeds)] = bump
	for b := int(consts.MaxUint8); b >= 0; b-- {
		bump[0] = uint8(b)
		addr, err := create(bumped, program)
		switch {
		case err == nil:
			return addr, uint8(b), nil
		case err == ErrInvalidSeeds:
			continue
		default:
			return codec.EmptyAddress, 0, err
		}
	}
	return codec.EmptyAddress, 0, ErrNoViableBump
}

// OnCurve reports whether [b] decodes to a point on the ed25519 curve.
func OnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// Deriver derives one address per owner within the namespace [Tag] of
// [Program].
type Deriver struct {
	Program codec.Address
	Tag     string
}

// NewCounterDeriver returns the [Deriver] counters of [program] live at.
func NewCounterDeriver(program codec.Address) *Deriver {
	return &Deriver{Program: program, Tag: CounterTag}
}

// Derive returns the address and bump seed owned by [owner].
func (d *Deriver) Derive(owner []byte) (codec.Address, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(d.Tag), owner}, d.Program)
}

// Verify returns whether [addr] is the address owned by [owner].
func (d *Deriver) Verify(owner []byte, addr codec.Address) (bool, error) {
	derived, _, err := d.Derive(owner)
	if err != nil {
		return false, err
	}
	return derived == addr, nil
}
