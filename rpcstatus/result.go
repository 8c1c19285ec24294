// File: rpcstatus/result.go
// Package rpcstatus defines the RPC-level status taxonomy and the
// serializable Result<T> carrier shared by every RPC response.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcstatus

import (
	"github.com/momentics/hioload-ws/bytebuf"
	"github.com/momentics/hioload-ws/serializer"
)

// Code is the RPC-level status code carried in every Result.
type Code uint8

const (
	SUCCESS Code = iota
	FAIL
	NoMatch
	NoMethod
	Closed
	Timeout
)

func (c Code) String() string {
	switch c {
	case SUCCESS:
		return "SUCCESS"
	case FAIL:
		return "FAIL"
	case NoMatch:
		return "NO_MATCH"
	case NoMethod:
		return "NO_METHOD"
	case Closed:
		return "CLOSED"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Result carries a status code, a human message, and a value. Void
// handlers use struct{} for T, serialized as a single placeholder byte for
// wire uniformity.
type Result[T any] struct {
	Code    Code
	Message string
	Value   T
}

// Ok builds a SUCCESS result.
func Ok[T any](v T) Result[T] { return Result[T]{Code: SUCCESS, Value: v} }

// Err builds a non-success result with a message and zero value.
func Err[T any](code Code, message string) Result[T] {
	var zero T
	return Result[T]{Code: code, Message: message, Value: zero}
}

// IsSuccess reports whether the result is SUCCESS.
func (r Result[T]) IsSuccess() bool { return r.Code == SUCCESS }

// EncodeResultString serializes a Result[string], the wire shape used for
// RPC_SERVICE_REGISTER_RESPONSE and per-provider entries in
// RPC_SERVICE_DISCOVER_RESPONSE.
func EncodeResultString(w *serializer.Writer, r Result[string]) error {
	w.Buffer().WriteUint8(uint8(r.Code))
	w.Buffer().WriteString(r.Message)
	w.Buffer().WriteString(r.Value)
	return nil
}

// DecodeResultString is the counterpart of EncodeResultString.
func DecodeResultString(r *serializer.Reader) (Result[string], error) {
	codeByte, err := r.Buffer().ReadUint8()
	if err != nil {
		return Result[string]{}, err
	}
	msg, err := r.Buffer().ReadString()
	if err != nil {
		return Result[string]{}, err
	}
	val, err := r.Buffer().ReadString()
	if err != nil {
		return Result[string]{}, err
	}
	return Result[string]{Code: Code(codeByte), Message: msg, Value: val}, nil
}

// Void is the placeholder value written for Result[struct{}]: a single
// zero byte regardless of host language, so decoders on either side stay
// wire-compatible.
type Void = struct{}

// EncodeResultVoid writes a Result[Void] as code + message + one
// placeholder byte.
func EncodeResultVoid(buf *bytebuf.ByteBuf, r Result[Void]) {
	buf.WriteUint8(uint8(r.Code))
	buf.WriteString(r.Message)
	buf.WriteUint8(0)
}

// DecodeResultVoid is the counterpart of EncodeResultVoid.
func DecodeResultVoid(buf *bytebuf.ByteBuf) (Result[Void], error) {
	codeByte, err := buf.ReadUint8()
	if err != nil {
		return Result[Void]{}, err
	}
	msg, err := buf.ReadString()
	if err != nil {
		return Result[Void]{}, err
	}
	if _, err := buf.ReadUint8(); err != nil {
		return Result[Void]{}, err
	}
	return Result[Void]{Code: Code(codeByte), Message: msg}, nil
}
