// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

type Result struct {
	Success bool   `json:"success"`
	Code    uint32 `json:"code"`
	Error   []byte `json:"error"`
	Output  []byte `json:"output"`

	// Chunks allocated and written while executing, summed over all keys.
	Allocates uint64 `json:"allocates"`
	Writes    uint64 `json:"writes"`

	// Err is the error returned by the action, if any.
	Err error `json:"-"`
}

// Units is the storage work charged to the transaction.
func (r *Result) Units() uint64 {
	return r.Allocates + r.Writes
}
