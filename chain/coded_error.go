// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "errors"

const (
	ErrorCodeNone     uint32 = 0
	ErrorCodeInternal uint32 = 1

	// ErrorCodePrecondition is reported when the environment rejects an
	// action before it runs (wrong signer, missing or existing account).
	ErrorCodePrecondition uint32 = 2000
)

// CodedError is an error that carries a numeric code clients can match on
// without parsing messages.
type CodedError struct {
	code uint32
	msg  string
}

func NewCodedError(code uint32, msg string) *CodedError {
	return &CodedError{code: code, msg: msg}
}

func (e *CodedError) Error() string {
	return e.msg
}

func (e *CodedError) Code() uint32 {
	return e.code
}

// ErrorCode returns the code of the first [CodedError] wrapped by [err].
func ErrorCode(err error) uint32 {
	if err == nil {
		return ErrorCodeNone
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ErrorCodeInternal
}
