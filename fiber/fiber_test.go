package fiber_test

import (
	"testing"

	"github.com/momentics/hioload-ws/fiber"
)

func TestCreateResumeYieldTerm(t *testing.T) {
	var trace []string
	f, err := fiber.Create(func(yield func()) {
		trace = append(trace, "a")
		yield()
		trace = append(trace, "b")
	}, 0, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.State() != fiber.READY {
		t.Fatalf("expected READY, got %s", f.State())
	}

	f.Resume()
	if f.State() != fiber.READY {
		t.Fatalf("expected READY after first yield, got %s", f.State())
	}
	if len(trace) != 1 || trace[0] != "a" {
		t.Fatalf("unexpected trace after first resume: %v", trace)
	}

	f.Resume()
	if f.State() != fiber.TERM {
		t.Fatalf("expected TERM after entry returns, got %s", f.State())
	}
	if len(trace) != 2 || trace[1] != "b" {
		t.Fatalf("unexpected trace after second resume: %v", trace)
	}
}

func TestResumeRunningPanics(t *testing.T) {
	started := make(chan struct{})
	blockYield := make(chan struct{})
	f, _ := fiber.Create(func(yield func()) {
		close(started)
		<-blockYield
		yield()
	}, 0, false)

	go f.Resume()
	<-started

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic resuming a RUNNING fiber")
		}
		close(blockYield)
	}()
	f.Resume()
}

func TestResetReusesTerminatedFiber(t *testing.T) {
	f, _ := fiber.Create(func(yield func()) {}, 0, false)
	f.Resume()
	if f.State() != fiber.TERM {
		t.Fatalf("expected TERM, got %s", f.State())
	}

	ran := false
	f.Reset(func(yield func()) { ran = true })
	if f.State() != fiber.READY {
		t.Fatalf("expected READY after Reset, got %s", f.State())
	}
	f.Resume()
	if !ran {
		t.Fatalf("expected reset entry to run")
	}
}
