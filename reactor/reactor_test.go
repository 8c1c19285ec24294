package reactor_test

import (
	"os"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/reactor"
)

func newTestReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New("test", 2, nil)
	if err != nil {
		t.Skipf("reactor unsupported on this platform: %v", err)
	}
	r.Start()
	t.Cleanup(func() {
		r.Stop()
		r.Close()
	})
	return r
}

func TestAddEventFiresOnReadable(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	fired := make(chan reactor.EventMask, 1)
	if err := r.AddEvent(pr.Fd(), reactor.Readable, func(m reactor.EventMask) {
		fired <- m
	}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case m := <-fired:
		if m&reactor.Readable == 0 {
			t.Fatalf("expected Readable in mask, got %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readiness callback")
	}
}

func TestDelEventStopsCallback(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	calls := make(chan struct{}, 8)
	if err := r.AddEvent(pr.Fd(), reactor.Readable, func(reactor.EventMask) {
		calls <- struct{}{}
	}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if err := r.DelEvent(pr.Fd(), reactor.Readable); err != nil {
		t.Fatalf("DelEvent: %v", err)
	}

	pw.Write([]byte("y"))

	select {
	case <-calls:
		t.Fatal("callback fired after DelEvent")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWaitReadableUnblocksOnData(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	done := make(chan error, 1)
	go func() {
		done <- r.WaitReadable(pr.Fd(), -1)
	}()

	time.Sleep(50 * time.Millisecond)
	pw.Write([]byte("z"))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitReadable: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for WaitReadable to return")
	}
}

func TestWaitReadableTimesOut(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	err = r.WaitReadable(pr.Fd(), 100)
	if err != reactor.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCancelEventFiresCallbackOnce(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	fired := make(chan reactor.EventMask, 1)
	if err := r.AddEvent(pr.Fd(), reactor.Readable, func(m reactor.EventMask) {
		fired <- m
	}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	if err := r.CancelEvent(pr.Fd(), reactor.Readable); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}

	select {
	case m := <-fired:
		if m&reactor.Cancelled == 0 {
			t.Fatalf("expected Cancelled in mask, got %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CancelEvent never fired the callback")
	}
}

func TestCancelEventDoesNotDisturbOtherDirection(t *testing.T) {
	r := newTestReactor(t)

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	readFired := make(chan reactor.EventMask, 1)
	writeFired := make(chan reactor.EventMask, 1)
	if err := r.AddEvent(pr.Fd(), reactor.Readable, func(m reactor.EventMask) {
		readFired <- m
	}); err != nil {
		t.Fatalf("AddEvent read: %v", err)
	}
	if err := r.AddEvent(pw.Fd(), reactor.Writable, func(m reactor.EventMask) {
		writeFired <- m
	}); err != nil {
		t.Fatalf("AddEvent write: %v", err)
	}

	if err := r.CancelEvent(pr.Fd(), reactor.Readable); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}

	select {
	case <-readFired:
	case <-time.After(2 * time.Second):
		t.Fatal("CancelEvent never fired the read callback")
	}

	select {
	case m := <-writeFired:
		if m&reactor.Cancelled != 0 {
			t.Fatalf("write callback should fire on readiness, not cancellation, got %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write callback never fired on its own readiness")
	}
}

func TestTimerFiresThroughPollLoop(t *testing.T) {
	r := newTestReactor(t)

	fired := make(chan struct{}, 1)
	r.Wheel().AddTimer(50, func() { fired <- struct{}{} }, false)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}
