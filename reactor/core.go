// File: reactor/core.go
// Reactor is a readiness-driven event loop: it embeds a
// sched.Scheduler for task dispatch and a timerwheel.Wheel for deadlines,
// and dedicates the scheduler's first worker to running the platform poll
// loop, so a single goroutine ever touches the OS-level poller while every
// other worker keeps draining the shared task queue.
//
// Grounded on reactor/reactor_linux.go's epoll wrapper (kept as the
// low-level EventReactor backend) and internal/concurrency/executor.go's
// idle-hook seam, which sched.Scheduler exposes via SetHooks specifically
// so an owner like Reactor can replace the plain wake-channel park with a
// budgeted poll.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package reactor

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/logging"
	"github.com/momentics/hioload-ws/sched"
	"github.com/momentics/hioload-ws/timerwheel"
)

// pollWorkerID is the scheduler worker permanently dedicated to running the
// poll loop; every other worker parks on the plain wake channel.
const pollWorkerID = 0

// maxEventsPerWait bounds the batch size drained from the poller per pass.
const maxEventsPerWait = 256

// ErrAlreadyRegistered is returned by AddEvent for a descriptor that already
// has a live registration.
var ErrAlreadyRegistered = errors.New("reactor: descriptor already registered")

// regSlot is one direction's readiness callback.
type regSlot struct {
	callback func(EventMask)
}

// registration is one descriptor's readiness subscriptions. Read and write
// are independent slots, mirroring the original's separate per-direction
// event contexts: a goroutine waiting to read and another waiting to write
// on the same fd must not collide or starve each other.
type registration struct {
	fd    uintptr
	read  *regSlot
	write *regSlot
}

func (reg *registration) empty() bool { return reg.read == nil && reg.write == nil }

// Reactor combines the M:N worker pool, the timer wheel, and a platform
// poller into a single event loop abstraction.
type Reactor struct {
	*sched.Scheduler
	wheel   *timerwheel.Wheel
	poller  EventReactor
	log     logging.Logger
	metrics *control.MetricsRegistry

	mu    sync.Mutex
	regs  map[uintptr]*registration

	wake     chan struct{}
	wakeR    *os.File
	wakeW    *os.File
	wakeFd   uintptr

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Reactor with workerCount scheduler workers (>= 1) backed by
// the platform's native poller. Worker 0 always runs the poll loop. Extra
// scheduler options (WithWorkerCPUs, WithMetrics, ...) apply after the
// logger, so passing another WithLogger in opts overrides log.
func New(name string, workerCount int, log logging.Logger, opts ...sched.Option) (*Reactor, error) {
	if log == nil {
		log = logging.Nop()
	}
	poller, err := NewReactor()
	if err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		poller.Close()
		return nil, err
	}

	schedOpts := append([]sched.Option{sched.WithLogger(log)}, opts...)
	r := &Reactor{
		Scheduler: sched.New(name, workerCount, schedOpts...),
		poller:    poller,
		log:       log,
		regs:      make(map[uintptr]*registration),
		wake:      make(chan struct{}, 1),
		wakeR:     pr,
		wakeW:     pw,
		wakeFd:    pr.Fd(),
		closed:    make(chan struct{}),
	}
	r.wheel = timerwheel.New(r.interruptPoll)

	if err := poller.Register(r.wakeFd, r.wakeFd); err != nil {
		pr.Close()
		pw.Close()
		poller.Close()
		return nil, err
	}
	r.regs[r.wakeFd] = &registration{fd: r.wakeFd, read: &regSlot{callback: r.drainWake}}

	r.SetHooks(r.tickle, r.idle)
	return r, nil
}

// Wheel exposes the reactor's timer wheel so callers can schedule timeouts
// alongside I/O readiness.
func (r *Reactor) Wheel() *timerwheel.Wheel { return r.wheel }

// SetMetrics attaches a metrics registry that receives pending-timer and
// poll-wait-latency observations from every pollOnce pass. Nil disables
// reporting.
func (r *Reactor) SetMetrics(mr *control.MetricsRegistry) { r.metrics = mr }

// AddEvent registers fd for the given direction(s); callback fires on the
// poll worker when that direction becomes ready. mask is expected to name a
// single direction (Readable or Writable) per call, mirroring the
// original's per-event add_event: a reader and a writer waiting
// concurrently on the same fd get independent slots and neither starves the
// other. Returns ErrAlreadyRegistered if that direction already has a live
// callback on this fd.
func (r *Reactor) AddEvent(fd uintptr, mask EventMask, callback func(EventMask)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, exists := r.regs[fd]
	if exists {
		if mask&Readable != 0 && reg.read != nil {
			return ErrAlreadyRegistered
		}
		if mask&Writable != 0 && reg.write != nil {
			return ErrAlreadyRegistered
		}
	} else {
		if err := r.poller.Register(fd, fd); err != nil {
			return err
		}
		reg = &registration{fd: fd}
		r.regs[fd] = reg
	}
	if mask&Readable != 0 {
		reg.read = &regSlot{callback: callback}
	}
	if mask&Writable != 0 {
		reg.write = &regSlot{callback: callback}
	}
	return nil
}

// DelEvent removes fd's registration for the given direction(s) without
// ever invoking its callback. Safe to call even if that direction was never
// registered or was already removed.
func (r *Reactor) DelEvent(fd uintptr, mask EventMask) error {
	r.mu.Lock()
	reg, exists := r.regs[fd]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	if mask&Readable != 0 {
		reg.read = nil
	}
	if mask&Writable != 0 {
		reg.write = nil
	}
	empty := reg.empty()
	if empty {
		delete(r.regs, fd)
	}
	r.mu.Unlock()
	if !empty {
		return nil
	}
	return r.poller.Unregister(fd)
}

// CancelEvent removes fd's registration for the given direction(s) like
// DelEvent, but additionally fires each matched slot's callback once,
// tagged with Cancelled, so a fiber suspended in WaitReadable/WaitWritable
// wakes instead of hanging forever. A no-op (no callback fires) for any
// direction that had no live registration.
func (r *Reactor) CancelEvent(fd uintptr, mask EventMask) error {
	r.mu.Lock()
	reg, exists := r.regs[fd]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	type fired struct {
		cb  func(EventMask)
		dir EventMask
	}
	var callbacks []fired
	if mask&Readable != 0 && reg.read != nil {
		callbacks = append(callbacks, fired{reg.read.callback, Readable})
		reg.read = nil
	}
	if mask&Writable != 0 && reg.write != nil {
		callbacks = append(callbacks, fired{reg.write.callback, Writable})
		reg.write = nil
	}
	empty := reg.empty()
	if empty {
		delete(r.regs, fd)
	}
	r.mu.Unlock()

	var err error
	if empty {
		err = r.poller.Unregister(fd)
	}
	for _, f := range callbacks {
		f := f
		r.Scheduler.ScheduleFunc(func() { f.cb(f.dir | Cancelled) }, sched.AnyWorker)
	}
	return err
}

// CancelAll removes every live registration except the internal wake pipe,
// firing each one's callback once tagged with Cancelled before it is
// dropped, mirroring CancelEvent applied to every direction of every
// registered descriptor.
func (r *Reactor) CancelAll() {
	type fired struct {
		cb  func(EventMask)
		dir EventMask
	}
	r.mu.Lock()
	var fds []uintptr
	var callbacks []fired
	for fd, reg := range r.regs {
		if fd == r.wakeFd {
			continue
		}
		fds = append(fds, fd)
		if reg.read != nil {
			callbacks = append(callbacks, fired{reg.read.callback, Readable})
		}
		if reg.write != nil {
			callbacks = append(callbacks, fired{reg.write.callback, Writable})
		}
	}
	for _, fd := range fds {
		delete(r.regs, fd)
	}
	r.mu.Unlock()

	for _, fd := range fds {
		r.poller.Unregister(fd)
	}
	for _, f := range callbacks {
		f := f
		r.Scheduler.ScheduleFunc(func() { f.cb(f.dir | Cancelled) }, sched.AnyWorker)
	}
}

// Close stops the reactor's platform poller and wake pipe. Callers should
// Stop the embedded Scheduler first so the poll worker has exited.
func (r *Reactor) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		r.wakeW.Close()
		r.wakeR.Close()
		err = r.poller.Close()
	})
	return err
}

// tickle wakes either the poll worker (via the self-pipe, since epoll_wait
// cannot observe a channel send) or a parked plain worker.
func (r *Reactor) tickle() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
	r.interruptPoll()
}

func (r *Reactor) interruptPoll() {
	select {
	case <-r.closed:
		return
	default:
	}
	var b [1]byte
	r.wakeW.Write(b[:])
}

func (r *Reactor) drainWake(EventMask) {
	buf := make([]byte, 64)
	for {
		n, err := r.wakeR.Read(buf)
		if n < len(buf) || err != nil {
			return
		}
	}
}

// idle is installed as the scheduler's idle hook: worker 0 runs the poll
// loop, every other worker parks on the plain wake channel exactly like the
// scheduler's own default.
func (r *Reactor) idle(workerID int) {
	if workerID != pollWorkerID {
		<-r.wake
		return
	}
	r.pollOnce()
}

// pollOnce runs one pass of the event loop: fire due timers, then wait for
// I/O readiness budgeted by the wheel's next deadline.
func (r *Reactor) pollOnce() {
	for _, cb := range r.wheel.DrainExpired() {
		fn := cb
		r.Scheduler.ScheduleFunc(fn, sched.AnyWorker)
	}

	if r.metrics != nil {
		r.metrics.ReactorPendingTimers.Set(float64(r.wheel.Len()))
	}

	timeout := 1000
	if ms := r.wheel.NextDeadlineMs(); ms >= 0 && ms < 1000 {
		timeout = int(ms)
	}

	waitStart := time.Now()
	events := make([]Event, maxEventsPerWait)
	n, err := r.poller.Wait(events, timeout)
	if r.metrics != nil {
		r.metrics.ReactorPollWaitNanos.Observe(float64(time.Since(waitStart).Nanoseconds()))
	}
	if err != nil {
		r.log.Warn("reactor: poll wait failed", logging.Err(err))
		return
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		if ev.Fd == r.wakeFd {
			r.drainWake(ev.Mask)
			continue
		}
		r.mu.Lock()
		reg, ok := r.regs[ev.Fd]
		r.mu.Unlock()
		if !ok {
			continue
		}
		effective := ev.Mask
		if effective&ErrEvent != 0 {
			// An error or hangup must wake both directions: a registered
			// writer would otherwise never learn the peer is gone, since
			// EPOLLERR/EPOLLHUP carries no direction of its own.
			effective |= Readable | Writable
		}
		if effective&Readable != 0 && reg.read != nil {
			cb := reg.read.callback
			r.Scheduler.ScheduleFunc(func() { cb(effective & (Readable | ErrEvent)) }, sched.AnyWorker)
		}
		if effective&Writable != 0 && reg.write != nil {
			cb := reg.write.callback
			r.Scheduler.ScheduleFunc(func() { cb(effective & (Writable | ErrEvent)) }, sched.AnyWorker)
		}
	}
}
