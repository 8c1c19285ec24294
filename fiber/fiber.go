// File: fiber/fiber.go
// Package fiber implements a stackful-coroutine contract on top of a
// goroutine. Go's runtime already stackful-switches goroutines; Fiber
// exists to give that switch a create/resume/yield/reset state machine,
// so the scheduler (sched) and reactor packages can treat a fiber like a
// resumable unit of work.
//
// Grounded on internal/concurrency/executor.go's worker/task split: a Fiber
// is the per-task unit the scheduler resumes, the way worker.executeTask
// ran a TaskFunc, generalized to a full suspend/resume protocol instead of
// run-to-completion.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package fiber

import (
	"fmt"
	"sync/atomic"
)

// State is the fiber's position in its lifecycle.
type State int32

const (
	// READY means the fiber has not started, or yielded and is waiting to
	// be resumed again.
	READY State = iota
	// RUNNING means the fiber is the one currently executing.
	RUNNING
	// TERM means the entry closure has returned; the fiber will not run
	// again until Reset.
	TERM
)

func (s State) String() string {
	switch s {
	case READY:
		return "READY"
	case RUNNING:
		return "RUNNING"
	case TERM:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

// Entry is the closure a fiber runs. It receives the fiber's own Yield
// function so it can cooperatively suspend.
type Entry func(yield func())

var idSeq int64

// Fiber is a stackful-coroutine handle. It wraps one goroutine whose
// execution is handed back and forth with the resumer via a pair of
// rendezvous channels, giving explicit resume()/yield() control instead of
// Go's usual implicit scheduling.
type Fiber struct {
	id                  int64
	participatesInSched bool
	stackSize           uint32

	state   atomic.Int32
	entry   Entry
	resume  chan struct{}
	yielded chan struct{}
	started bool
}

// DefaultStackSize is the fiber.stack_size default (131072 bytes). Go
// goroutines grow their own stacks, so this is retained purely as a
// bookkeeping value reported to callers and config.
const DefaultStackSize = uint32(131072)

// Create allocates a new READY fiber bound to entry. stackSize is advisory
// (see DefaultStackSize); participatesInScheduler is recorded and reported
// by ParticipatesInScheduler. Yield always hands control back to the
// goroutine blocked in Resume, whatever the flag says.
func Create(entry Entry, stackSize uint32, participatesInScheduler bool) (*Fiber, error) {
	if entry == nil {
		return nil, fmt.Errorf("fiber: entry must not be nil")
	}
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	f := &Fiber{
		id:                  atomic.AddInt64(&idSeq, 1),
		participatesInSched: participatesInScheduler,
		stackSize:           stackSize,
		entry:               entry,
		resume:              make(chan struct{}),
		yielded:             make(chan struct{}),
	}
	f.state.Store(int32(READY))
	return f, nil
}

// ID returns the fiber's monotonic identity.
func (f *Fiber) ID() int64 { return f.id }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// ParticipatesInScheduler reports the flag passed to Create.
func (f *Fiber) ParticipatesInScheduler() bool { return f.participatesInSched }

// Resume switches execution to this fiber and blocks until it yields or
// terminates. Resuming a RUNNING or TERM fiber is a programming error.
func (f *Fiber) Resume() {
	if !f.state.CompareAndSwap(int32(READY), int32(RUNNING)) {
		panic(fmt.Sprintf("fiber %d: Resume called on non-READY fiber (state=%s)", f.id, f.State()))
	}
	if !f.started {
		f.started = true
		go f.trampoline()
	} else {
		f.resume <- struct{}{}
	}
	<-f.yielded
}

// trampoline runs the entry closure, translating its return into a TERM
// transition. It always ends in f.finish(), whose terminal yield does not
// wait to be resumed, so the trampoline then returns and its goroutine
// exits.
func (f *Fiber) trampoline() {
	f.entry(func() { f.selfYield(false) })
	f.finish()
}

// Yield suspends the currently RUNNING fiber, switching control back to
// whichever goroutine invoked Resume. State becomes READY, unless the
// entry closure is in the process of returning, in which case the caller
// should prefer the entry's natural return over calling Yield again.
func (f *Fiber) Yield() {
	f.selfYield(false)
}

func (f *Fiber) selfYield(terminal bool) {
	if f.State() != RUNNING {
		panic(fmt.Sprintf("fiber %d: Yield called while not RUNNING (state=%s)", f.id, f.State()))
	}
	if terminal {
		f.state.Store(int32(TERM))
	} else {
		f.state.Store(int32(READY))
	}
	f.yielded <- struct{}{}
	if !terminal {
		<-f.resume
	}
}

func (f *Fiber) finish() {
	f.entry = nil
	f.selfYield(true)
}

// Reset rebinds a TERM fiber to a new entry closure and returns it to
// READY; the next Resume starts a fresh goroutine for it, since the
// previous one exited at TERM. Calling Reset on a fiber
// that has not reached TERM is a programming error.
func (f *Fiber) Reset(entry Entry) {
	if !f.state.CompareAndSwap(int32(TERM), int32(READY)) {
		panic(fmt.Sprintf("fiber %d: Reset called on non-TERM fiber (state=%s)", f.id, f.State()))
	}
	f.entry = entry
	f.started = false
}
