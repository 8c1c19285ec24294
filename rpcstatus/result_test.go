package rpcstatus_test

import (
	"testing"

	"github.com/momentics/hioload-ws/bytebuf"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/serializer"
)

// TestRegisterResponseRoundTrip encodes a successful service-register
// response and decodes it back.
func TestRegisterResponseRoundTrip(t *testing.T) {
	buf := bytebuf.New()
	w := serializer.NewWriter(buf)
	want := rpcstatus.Result[string]{Code: rpcstatus.SUCCESS, Message: "success", Value: "Add"}
	if err := rpcstatus.EncodeResultString(w, want); err != nil {
		t.Fatalf("encode: %v", err)
	}

	r := serializer.NewReader(buf)
	got, err := rpcstatus.DecodeResultString(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGenericResultRoundTrip(t *testing.T) {
	buf := bytebuf.New()
	w := serializer.NewWriter(buf)
	want := rpcstatus.Ok(int32(7))
	if err := rpcstatus.EncodeResult(w, want); err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf.Seek(0)
	r := serializer.NewReader(buf)
	got, err := rpcstatus.DecodeResult(r, int32(0))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != rpcstatus.SUCCESS || got.Value != 7 {
		t.Fatalf("got %+v", got)
	}
}
