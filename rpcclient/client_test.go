package rpcclient_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ws/bytebuf"
	"github.com/momentics/hioload-ws/rpcclient"
	"github.com/momentics/hioload-ws/rpcsession"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/serializer"
	"github.com/momentics/hioload-ws/wire"
)

// fakeServer reads frame-by-frame off its side of a net.Pipe and hands each
// request to handle, which returns the response payload to write back (or
// nil to drop the request on the floor, simulating a dead/slow peer).
func fakeServer(t *testing.T, conn net.Conn, handle func(wire.Frame) (wire.Frame, bool)) {
	t.Helper()
	sess := rpcsession.New(conn)
	go func() {
		for {
			f, err := sess.Recv()
			if err != nil {
				return
			}
			resp, ok := handle(f)
			if !ok {
				continue
			}
			resp.SequenceID = f.SequenceID
			if err := sess.Send(resp); err != nil {
				return
			}
		}
	}()
}

// TestCallRoundTrip exercises Add(3,4) returning Result<int32>{SUCCESS,"",7}
// with the request's sequence id.
func TestCallRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	fakeServer(t, serverConn, func(f wire.Frame) (wire.Frame, bool) {
		if f.Type != wire.RPCMethodRequest {
			return wire.Frame{}, false
		}
		buf := bytebuf.New()
		w := serializer.NewWriter(buf)
		_ = rpcstatus.EncodeResult(w, rpcstatus.Ok[int32](7))
		return wire.Frame{Type: wire.RPCMethodResponse, Payload: buf.Bytes()}, true
	})

	c := rpcclient.New(clientConn, rpcclient.Config{HeartbeatInterval: -1})
	defer c.Close()

	r := rpcclient.Call[int32](c, "Add", int32(0), time.Second, int32(3), int32(4))
	require.True(t, r.IsSuccess(), "Add(3,4) = %+v, want SUCCESS", r)
	require.Equal(t, int32(7), r.Value)
}

// TestCallTimeout exercises a 100ms timeout against a server that never
// answers, returning TIMEOUT and freeing the pending slot.
func TestCallTimeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	fakeServer(t, serverConn, func(f wire.Frame) (wire.Frame, bool) {
		return wire.Frame{}, false // never respond
	})

	c := rpcclient.New(clientConn, rpcclient.Config{HeartbeatInterval: -1})
	defer c.Close()

	start := time.Now()
	r := rpcclient.Call[int32](c, "Slow", int32(0), 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Equal(t, rpcstatus.Timeout, r.Code)
	require.Less(t, elapsed, 400*time.Millisecond, "timeout took %v, want close to 100ms", elapsed)
}

func TestCallAfterCloseReturnsClosed(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	serverConn.Close()

	c := rpcclient.New(clientConn, rpcclient.Config{HeartbeatInterval: -1})
	c.Close()

	r := rpcclient.Call[int32](c, "Add", int32(0), time.Second, int32(1), int32(2))
	require.Equal(t, rpcstatus.Closed, r.Code)
}

func TestAsyncCallDeliversOnChannel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	fakeServer(t, serverConn, func(f wire.Frame) (wire.Frame, bool) {
		buf := bytebuf.New()
		w := serializer.NewWriter(buf)
		_ = rpcstatus.EncodeResult(w, rpcstatus.Ok[int32](42))
		return wire.Frame{Type: wire.RPCMethodResponse, Payload: buf.Bytes()}, true
	})

	c := rpcclient.New(clientConn, rpcclient.Config{HeartbeatInterval: -1})
	defer c.Close()

	ch := rpcclient.AsyncCall[int32](c, "Answer", int32(0), time.Second)
	select {
	case r := <-ch:
		require.True(t, r.IsSuccess(), "got %+v, want SUCCESS", r)
		require.Equal(t, int32(42), r.Value)
	case <-time.After(time.Second):
		t.Fatal("async call never delivered")
	}
}

func TestSubscribeAcknowledgedAndDispatchesPublish(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	sess := rpcsession.New(serverConn)
	go func() {
		f, err := sess.Recv()
		if err != nil || f.Type != wire.RPCSubscribeRequest {
			return
		}
		ack := rpcstatus.Ok("subscribed")
		buf := bytebuf.New()
		rpcstatus.EncodeResultString(serializer.NewWriter(buf), ack)
		sess.Send(wire.Frame{Type: wire.RPCSubscribeResponse, SequenceID: f.SequenceID, Payload: buf.Bytes()})

		sess.Send(wire.Frame{
			Type:    wire.RPCPublishRequest,
			Payload: wire.EncodePublishPayload("topic.a", []byte("hello")),
		})
	}()

	c := rpcclient.New(clientConn, rpcclient.Config{HeartbeatInterval: -1})
	defer c.Close()

	received := make(chan string, 1)
	require.NoError(t, c.Subscribe("topic.a", func(data []byte) { received <- string(data) }))

	select {
	case data := <-received:
		require.Equal(t, "hello", data)
	case <-time.After(time.Second):
		t.Fatal("publish never dispatched")
	}
}
