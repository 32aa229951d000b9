// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package throw

import (
	"fmt"
	"runtime"
)

// New creates an error with the given message.
func New(msg string) error {
	return fault{msg: msg}
}

// E creates an error with the given message and details.
func E(msg string, details ...interface{}) error {
	return fault{msg: msg, details: details}
}

// W wraps the given error with a message and details. Returns nil when (err) is nil.
func W(err error, msg string, details ...interface{}) error {
	if err == nil {
		return nil
	}
	return fault{msg: msg, details: details, err: err}
}

// WithDetails wraps the given error with details. Returns nil when (err) is nil.
func WithDetails(err error, details ...interface{}) error {
	if err == nil {
		return nil
	}
	return fault{msg: err.Error(), details: details, err: err}
}

// IllegalValue is to indicate that an argument provided to a calling function is incorrect
// This error captures the caller's location.
func IllegalValue() error {
	return newFault("illegal value")
}

// IllegalState is to indicate that an object has an internal state inconsistent with the invoked operation.
// This error captures the caller's location.
func IllegalState() error {
	return newFault("illegal state")
}

// Impossible indicates a code path that must never be reached.
// This error captures the caller's location.
func Impossible() error {
	return newFault("impossible")
}

// Unsupported is to indicate an unsupported operation.
// This error captures the caller's location.
func Unsupported() error {
	return newFault("unsupported")
}

// NotImplemented is to indicate an operation that is not yet implemented.
// This error captures the caller's location.
func NotImplemented() error {
	return newFault("not implemented")
}

func newFault(msg string) fault {
	return fault{msg: msg, caller: callerName(2)}
}

func callerName(skipFrames int) string {
	pc, _, _, ok := runtime.Caller(skipFrames + 1)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	return fn.Name()
}

type fault struct {
	msg     string
	caller  string
	details []interface{}
	err     error
}

func (v fault) Error() string {
	s := v.msg
	if v.caller != "" {
		s += " at " + v.caller
	}
	for _, d := range v.details {
		s += fmt.Sprintf(" %+v", d)
	}
	if v.err != nil {
		s += ": " + v.err.Error()
	}
	return s
}

func (v fault) Unwrap() error {
	return v.err
}
