// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "errors"

var (
	ErrInvalidCounter       = errors.New("invalid counter")
	ErrInvalidDiscriminator = errors.New("invalid account discriminator")
	ErrInvalidTransaction   = errors.New("invalid stored transaction")
)
