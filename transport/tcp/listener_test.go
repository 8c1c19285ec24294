package tcp_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/sched"
	"github.com/momentics/hioload-ws/transport/tcp"
)

func TestListenerDispatchesAcceptedConns(t *testing.T) {
	sc := sched.New("tcp-test", 2)
	sc.Start()
	defer sc.Stop()

	accepted := make(chan net.Conn, 1)
	ln, err := tcp.New(tcp.Config{
		Addrs:     []string{"127.0.0.1:0"},
		Scheduler: sc,
		Handler: func(c net.Conn) {
			accepted <- c
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ln.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ln.Close()

	addr := ln.Addrs()[0].String()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never dispatched")
	}
}

func TestNewRequiresHandlerAndScheduler(t *testing.T) {
	if _, err := tcp.New(tcp.Config{Addrs: []string{"127.0.0.1:0"}}); err == nil {
		t.Fatal("expected error for missing Handler/Scheduler")
	}
}
