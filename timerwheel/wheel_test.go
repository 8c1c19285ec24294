package timerwheel_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-ws/timerwheel"
)

func TestMonotonicOrdering(t *testing.T) {
	w := timerwheel.New(nil)
	var order []int
	w.AddTimer(30, func() { order = append(order, 2) }, false)
	w.AddTimer(5, func() { order = append(order, 1) }, false)

	time.Sleep(60 * time.Millisecond)
	cbs := w.DrainExpired()
	for _, cb := range cbs {
		cb()
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2] in deadline order, got %v", order)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	w := timerwheel.New(nil)
	fired := false
	timer := w.AddTimer(5, func() { fired = true }, false)
	timer.Cancel()

	time.Sleep(20 * time.Millisecond)
	for _, cb := range w.DrainExpired() {
		cb()
	}
	if fired {
		t.Fatalf("expected canceled timer not to fire")
	}
}

func TestRecurringReinserts(t *testing.T) {
	w := timerwheel.New(nil)
	count := 0
	w.AddTimer(5, func() { count++ }, true)

	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		for _, cb := range w.DrainExpired() {
			cb()
		}
	}
	if count < 2 {
		t.Fatalf("expected recurring timer to fire multiple times, got %d", count)
	}
}

func TestConditionalTimerSkippedWhenWitnessDead(t *testing.T) {
	w := timerwheel.New(nil)
	fired := false
	alive := false
	w.AddConditionTimer(5, func() { fired = true }, func() bool { return alive }, false)

	time.Sleep(20 * time.Millisecond)
	for _, cb := range w.DrainExpired() {
		cb()
	}
	if fired {
		t.Fatalf("expected conditional timer with dead witness not to fire")
	}
}

func TestNextDeadlineMsEmptyIsNegative(t *testing.T) {
	w := timerwheel.New(nil)
	if got := w.NextDeadlineMs(); got != -1 {
		t.Fatalf("expected -1 for empty wheel, got %d", got)
	}
}
