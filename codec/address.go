// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"github.com/mr-tron/base58"
)

// AddressLen matches the size of an ed25519 public key so an address can be
// compared against the curve when it is derived.
const AddressLen = 32

// Address is the 32 byte location of an account.
type Address [AddressLen]byte

var EmptyAddress = Address{}

// String implements fmt.Stringer.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// StringToAddress parses a base58 address.
func StringToAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyAddress, err
	}
	if len(b) != AddressLen {
		return EmptyAddress, ErrInvalidAddress
	}
	return Address(b), nil
}

// MarshalText returns the base58 representation of a.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a base58 address.
func (a *Address) UnmarshalText(input []byte) error {
	addr, err := StringToAddress(string(input))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
