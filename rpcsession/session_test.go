package rpcsession_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/rpcsession"
	"github.com/momentics/hioload-ws/wire"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sa := rpcsession.New(a)
	sb := rpcsession.New(b)

	go func() {
		_ = sa.Send(wire.Frame{Type: wire.RPCMethodRequest, SequenceID: 5, Payload: []byte("ping")})
	}()

	f, err := sb.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if f.SequenceID != 5 || string(f.Payload) != "ping" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestRecvAfterCloseReturnsErrClosed(t *testing.T) {
	a, b := net.Pipe()
	sa := rpcsession.New(a)
	sb := rpcsession.New(b)
	_ = sb.Close()

	done := make(chan error, 1)
	go func() {
		_, err := sa.Recv()
		done <- err
	}()
	select {
	case err := <-done:
		if err != rpcsession.ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Recv to observe close")
	}
}
