package wire_test

import (
	"bytes"
	"testing"

	"github.com/momentics/hioload-ws/wire"
)

// TestHeartbeatLiteral exercises a heartbeat frame's literal byte encoding.
func TestHeartbeatLiteral(t *testing.T) {
	want := []byte{0xCC, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	got := wire.Encode(wire.Heartbeat())
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestProviderAnnouncementType(t *testing.T) {
	if wire.RPCProvider != 1 {
		t.Fatalf("expected RPC_PROVIDER == 1, got %d", wire.RPCProvider)
	}
	if wire.RPCServiceRegister != 7 {
		t.Fatalf("expected RPC_SERVICE_REGISTER == 7, got %d", wire.RPCServiceRegister)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f := wire.Frame{Type: wire.RPCMethodRequest, SequenceID: 42, Payload: []byte("hello")}
	raw := wire.Encode(f)
	got, n, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(raw), n)
	}
	if got.Type != f.Type || got.SequenceID != f.SequenceID || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestMagicMismatchCloses(t *testing.T) {
	raw := wire.Encode(wire.Heartbeat())
	raw[0] = 0xAB
	_, _, err := wire.Decode(raw)
	if err != wire.ErrMagicMismatch {
		t.Fatalf("expected ErrMagicMismatch, got %v", err)
	}
}

func TestTruncatedFrame(t *testing.T) {
	f := wire.Frame{Type: wire.RPCMethodRequest, SequenceID: 1, Payload: []byte("payload")}
	raw := wire.Encode(f)
	_, _, err := wire.Decode(raw[:len(raw)-2])
	if err != wire.ErrTruncatedHeader {
		t.Fatalf("expected ErrTruncatedHeader, got %v", err)
	}
}

func TestZeroLengthPayloadValid(t *testing.T) {
	f := wire.Frame{Type: wire.HeartbeatPacket, SequenceID: 0}
	raw := wire.Encode(f)
	got, _, err := wire.Decode(raw)
	if err != nil || len(got.Payload) != 0 {
		t.Fatalf("expected valid zero-length payload frame, got %+v err=%v", got, err)
	}
}
