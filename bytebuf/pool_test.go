package bytebuf_test

import (
	"testing"

	"github.com/momentics/hioload-ws/bytebuf"
)

func TestGetPutReusesAndResets(t *testing.T) {
	b := bytebuf.Get()
	b.WriteString("first")
	if b.Size() == 0 {
		t.Fatalf("expected non-empty buffer after write")
	}
	bytebuf.Put(b)

	b2 := bytebuf.Get()
	if b2.Size() != 0 {
		t.Fatalf("expected Get after Put to return a reset buffer, got size %d", b2.Size())
	}
	bytebuf.Put(b2)
}
