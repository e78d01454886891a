// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ed25519

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"

	"github.com/hdevalence/ed25519consensus"
	"github.com/mr-tron/base58"

	"github.com/ava-labs/countervm/crypto"
	"github.com/ava-labs/countervm/utils"
)

type (
	PublicKey  [ed25519.PublicKeySize]byte
	PrivateKey [ed25519.PrivateKeySize]byte
	Signature  [ed25519.SignatureSize]byte
)

// We use the ZIP-215 specification for ed25519 signature
// verification (https://zips.z.cash/zip-0215) because it provides
// an explicit validity criteria for signatures, supports batch
// verification, and is broadly compatible with signatures produced
// by almost all ed25519 implementations (which don't require
// canonically-encoded points).
//
// You can read more about the rationale for ZIP-215 here:
// https://hdevalence.ca/blog/2020-10-04-its-25519am
const (
	PublicKeyLen  = ed25519.PublicKeySize
	PrivateKeyLen = ed25519.PrivateKeySize
	// PrivateKeySeedLen is defined because ed25519.PrivateKey
	// is formatted as privateKey = seed|publicKey. We use this const
	// to extract the publicKey below.
	PrivateKeySeedLen = ed25519.SeedSize
	SignatureLen      = ed25519.SignatureSize

	// MinBatchSize is the smallest number of signatures worth
	// verifying with a [Batch].
	MinBatchSize = 4
)

var (
	EmptyPublicKey  = [ed25519.PublicKeySize]byte{}
	EmptyPrivateKey = [ed25519.PrivateKeySize]byte{}
	EmptySignature  = [ed25519.SignatureSize]byte{}
)

// GeneratePrivateKey returns a Ed25519 PrivateKey.
func GeneratePrivateKey() (PrivateKey, error) {
	_, k, err := ed25519.GenerateKey(nil)
	if err != nil {
		return EmptyPrivateKey, err
	}
	return PrivateKey(k), nil
}

// PublicKey returns a PublicKey associated with the Ed25519 PrivateKey p.
// The PublicKey is the last 32 bytes of p.
func (p PrivateKey) PublicKey() PublicKey {
	return PublicKey(p[PrivateKeySeedLen:])
}

// ToHex converts a PrivateKey to a hex string.
func (p PrivateKey) ToHex() string {
	return hex.EncodeToString(p[:])
}

// Save writes [PrivateKey] to a file [filename]. If filename does
// not exist, it creates a new file with read/write permissions.
func (p PrivateKey) Save(filename string) error {
	return utils.SaveBytes(filename, p[:])
}

// LoadKey returns a PrivateKey from a file filename.
func LoadKey(filename string) (PrivateKey, error) {
	bytes, err := utils.LoadBytes(filename, PrivateKeyLen)
	if errors.Is(err, utils.ErrInvalidSize) {
		return EmptyPrivateKey, ErrInvalidPrivateKey
	}
	if err != nil {
		return EmptyPrivateKey, err
	}
	return PrivateKey(bytes), nil
}

// HexToKey converts a hexadecimal encoded key into a PrivateKey.
func HexToKey(key string) (PrivateKey, error) {
	bytes, err := hex.DecodeString(key)
	if err != nil {
		return EmptyPrivateKey, err
	}
	if len(bytes) != PrivateKeyLen {
		return EmptyPrivateKey, ErrInvalidPrivateKey
	}
	return PrivateKey(bytes), nil
}

// String returns the base58 encoding of p, the format wallets display
// identities in.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// ParsePublicKey decodes a base58 encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPublicKey, err
	}
	if len(b) != PublicKeyLen {
		return EmptyPublicKey, ErrInvalidPublicKey
	}
	return PublicKey(b), nil
}

func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PublicKey) UnmarshalText(input []byte) error {
	pk, err := ParsePublicKey(string(input))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// Sign returns a valid signature for msg using pk.
func Sign(msg []byte, pk PrivateKey) Signature {
	sig := ed25519.Sign(pk[:], msg)
	return Signature(sig)
}

// Verify returns whether s is a valid signature of msg by p.
func Verify(msg []byte, p PublicKey, s Signature) bool {
	return ed25519consensus.Verify(p[:], msg, s[:])
}

type Batch struct {
	bv ed25519consensus.BatchVerifier
}

func NewBatch(size int) *Batch {
	return &Batch{bv: ed25519consensus.NewPreallocatedBatchVerifier(size)}
}

func (b *Batch) Add(msg []byte, p PublicKey, s Signature) {
	b.bv.Add(p[:], msg, s[:])
}

func (b *Batch) Verify() bool {
	return b.bv.Verify()
}

func (b *Batch) VerifyAsync() func() error {
	return func() error {
		if !b.Verify() {
			return crypto.ErrInvalidSignature
		}
		return nil
	}
}
