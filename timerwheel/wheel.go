// File: timerwheel/wheel.go
// Package timerwheel implements an ordered deadline set: add/cancel/
// refresh/reset timers, conditional (weak-witness) timers, and
// expired-timer draining for the reactor's idle loop.
//
// Grounded on internal/concurrency/scheduler.go's container/heap-based
// timerQ sketch, generalized into a fully worked min-heap keyed by
// (deadline, sequence) for a deterministic, stable tie-break by object
// identity.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package timerwheel

import (
	"container/heap"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Witness is a weak-reference upgrade check for conditional timers: it
// returns false once the referent is gone, so the timer is skipped at
// fire time instead of invoked against a dead object.
type Witness func() bool

// staleJumpThreshold is the clock-rollover guard: if now regresses by
// more than this, every timer is treated as expired.
const staleJumpThreshold = time.Hour

// Timer is a handle into the wheel returned by AddTimer/AddConditionTimer.
type Timer struct {
	seq       int64
	deadline  int64 // ms since monotonic epoch
	period    int64 // ms
	recurring bool
	callback  func()
	witness   Witness // nil for unconditional timers

	wheel    *Wheel
	index    int // heap index, -1 when not in the heap
	canceled bool
}

// Cancel removes the timer; its callback will not fire again.
func (t *Timer) Cancel() {
	t.wheel.remove(t)
}

// Refresh re-baselines the timer to now+period, keeping the same period.
func (t *Timer) Refresh() {
	t.wheel.refresh(t, t.period)
}

// Reset rebinds the timer's period. If fromNow is true the new deadline is
// now+newPeriod; otherwise it is the timer's previous deadline+newPeriod.
func (t *Timer) Reset(newPeriodMs int64, fromNow bool) {
	t.wheel.reset(t, newPeriodMs, fromNow)
}

// Wheel is the reader-writer-locked ordered set of pending timers.
type Wheel struct {
	mu       sync.RWMutex
	heap     timerHeap
	seq      int64
	prevNow  int64
	onInsert func() // notifies an owning reactor to shorten its wait
}

// New builds an empty timer wheel. onInsertFront, if non-nil, is invoked
// whenever an insertion becomes the new soonest deadline, letting an owning
// reactor interrupt an in-progress wait.
func New(onInsertFront func()) *Wheel {
	w := &Wheel{onInsert: onInsertFront}
	heap.Init(&w.heap)
	return w
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// AddTimer schedules callback to run delayMs from now, optionally
// recurring every delayMs thereafter.
func (w *Wheel) AddTimer(delayMs int64, callback func(), recurring bool) *Timer {
	return w.addTimer(delayMs, callback, nil, recurring)
}

// AddConditionTimer schedules callback to run delayMs from now, but only if
// witness() still reports true at fire time.
func (w *Wheel) AddConditionTimer(delayMs int64, callback func(), witness Witness, recurring bool) *Timer {
	return w.addTimer(delayMs, callback, witness, recurring)
}

func (w *Wheel) addTimer(delayMs int64, callback func(), witness Witness, recurring bool) *Timer {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	t := &Timer{
		seq:       w.seq,
		deadline:  nowMs() + delayMs,
		period:    delayMs,
		recurring: recurring,
		callback:  callback,
		witness:   witness,
		wheel:     w,
		index:     -1,
	}
	heap.Push(&w.heap, t)
	w.notifyIfFront(t)
	return t
}

func (w *Wheel) notifyIfFront(t *Timer) {
	if w.onInsert != nil && len(w.heap) > 0 && w.heap[0] == t {
		w.onInsert()
	}
}

func (w *Wheel) remove(t *Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.index < 0 || t.canceled {
		return
	}
	t.canceled = true
	heap.Remove(&w.heap, t.index)
}

func (w *Wheel) refresh(t *Timer, period int64) {
	w.reset(t, period, true)
}

func (w *Wheel) reset(t *Timer, newPeriodMs int64, fromNow bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	base := t.deadline
	if fromNow {
		base = nowMs()
	}
	if t.index >= 0 {
		heap.Remove(&w.heap, t.index)
	}
	t.canceled = false
	t.period = newPeriodMs
	t.deadline = base + newPeriodMs
	heap.Push(&w.heap, t)
	w.notifyIfFront(t)
}

// NextDeadlineMs returns the number of milliseconds until the soonest
// pending timer, or -1 ("infinite") if the wheel is empty.
func (w *Wheel) NextDeadlineMs() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.heap) == 0 {
		return -1
	}
	d := w.heap[0].deadline - nowMs()
	if d < 0 {
		d = 0
	}
	return d
}

// DrainExpired pops every timer whose deadline is due, returning the
// callbacks ready to run (skipping conditional timers whose witness has
// expired). Recurring timers are re-inserted with a fresh deadline before
// this call returns. Callers are responsible for scheduling the returned
// callbacks; DrainExpired never invokes them itself.
func (w *Wheel) DrainExpired() []func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now, forceAll := w.rebaseForClockJump()

	ready := queue.New()
	for len(w.heap) > 0 && (forceAll || w.heap[0].deadline <= now) {
		t := heap.Pop(&w.heap).(*Timer)
		t.index = -1
		if t.canceled {
			continue
		}
		ready.Add(t)
		if t.recurring {
			t.deadline = now + t.period
			heap.Push(&w.heap, t)
		}
	}

	callbacks := make([]func(), 0, ready.Length())
	for ready.Length() > 0 {
		t := ready.Remove().(*Timer)
		if t.witness != nil && !t.witness() {
			continue
		}
		callbacks = append(callbacks, t.callback)
	}
	return callbacks
}

// rebaseForClockJump implements the rollover guard: if now has regressed
// by more than an hour since the previous observation, every timer is
// treated as due. Small negative jumps are tolerated silently.
func (w *Wheel) rebaseForClockJump() (now int64, forceAll bool) {
	now = nowMs()
	if w.prevNow != 0 && now < w.prevNow-staleJumpThreshold.Milliseconds() {
		forceAll = true
	}
	w.prevNow = now
	return now, forceAll
}

// Len reports the number of timers currently pending, for diagnostics.
func (w *Wheel) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.heap)
}

// timerHeap implements container/heap.Interface over *Timer, ordered by
// (deadline, seq) for a deterministic tie-break.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
