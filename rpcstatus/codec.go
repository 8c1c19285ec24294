// File: rpcstatus/codec.go
// Generic Result<T> wire codec for RPC_METHOD_RESPONSE, layered on
// serializer.Writer/Reader's type-directed value codec.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rpcstatus

import "github.com/momentics/hioload-ws/serializer"

// EncodeResult writes code, message, then the value via WriteValue. Void
// results should use EncodeResultVoid instead, to get the fixed
// one-byte-placeholder wire shape.
func EncodeResult[T any](w *serializer.Writer, r Result[T]) error {
	w.Buffer().WriteUint8(uint8(r.Code))
	w.Buffer().WriteString(r.Message)
	return w.WriteValue(r.Value)
}

// DecodeResult reads a Result<T>, using zero to select T's wire shape
// (see serializer.Reader.ReadInto). A decode failure on the value itself is
// surfaced as NO_MATCH by the caller; DecodeResult itself just returns the
// underlying error.
func DecodeResult[T any](r *serializer.Reader, zero T) (Result[T], error) {
	codeByte, err := r.Buffer().ReadUint8()
	if err != nil {
		return Result[T]{}, err
	}
	msg, err := r.Buffer().ReadString()
	if err != nil {
		return Result[T]{}, err
	}
	raw, err := r.ReadInto(zero)
	if err != nil {
		return Result[T]{Code: Code(codeByte), Message: msg}, err
	}
	val, _ := raw.(T)
	return Result[T]{Code: Code(codeByte), Message: msg, Value: val}, nil
}
