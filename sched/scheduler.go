// File: sched/scheduler.go
// Package sched implements an M:N worker pool: a shared FIFO task queue
// drained by worker goroutines, where a task is either a fiber to resume
// or a closure to run inside a reusable callback fiber, and every task
// carries an optional thread affinity.
//
// Grounded on internal/concurrency/executor.go's Executor/worker pair
// (globalQueue + per-worker goroutines + graceful Close), generalized from
// run-to-completion TaskFunc dispatch to full fiber resume/yield so tasks
// can suspend mid-flight (the reactor package builds on exactly this).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-ws/affinity"
	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/fiber"
	"github.com/momentics/hioload-ws/logging"
)

// AnyWorker is the affinity value meaning "any worker may run this task".
const AnyWorker = -1

// Task is a tagged union of (fiber, affinity) or (closure, affinity).
type Task struct {
	Fiber    *fiber.Fiber
	Closure  func()
	Affinity int
}

// Scheduler is the M:N worker pool. Zero value is not usable; build with
// New.
type Scheduler struct {
	name        string
	workerCount int
	useCaller   bool
	log         logging.Logger
	workerCPUs  []int

	queueMu sync.Mutex
	queue   []*Task
	wake    chan struct{}

	activeCount int32
	idleCount   int32
	stopping    atomic.Bool

	metrics *control.MetricsRegistry

	wg sync.WaitGroup

	// tickle and idle are overridable by embedding types (reactor.Reactor)
	// to replace the plain wake-channel notification with, e.g., a
	// readiness-poll wait budgeted by pending timers.
	tickle func()
	idle   func(workerID int)
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLogger attaches a structured logger; defaults to a no-op sink.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithCallerParticipation reserves the goroutine that calls Start as one of
// the workers.
func WithCallerParticipation() Option {
	return func(s *Scheduler) { s.useCaller = true }
}

// WithWorkerCPUs pins each worker goroutine to a logical CPU, by worker
// index modulo len(cpus). A pin failure is logged and otherwise ignored,
// since the scheduler remains correct (just not NUMA-local) without it.
func WithWorkerCPUs(cpus []int) Option {
	return func(s *Scheduler) { s.workerCPUs = cpus }
}

// WithMetrics attaches a metrics registry that receives live worker and
// queue-depth gauges on every dequeue/idle transition. Nil (the default)
// disables reporting entirely.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(s *Scheduler) { s.metrics = mr }
}

// New builds a Scheduler with the given name and worker count (>= 1).
func New(name string, workerCount int, opts ...Option) *Scheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	s := &Scheduler{
		name:        name,
		workerCount: workerCount,
		log:         logging.Nop(),
		wake:        make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.tickle = s.defaultTickle
	s.idle = s.defaultIdle
	return s
}

// SetHooks lets an embedding scheduler (the reactor) replace the tickle/idle
// behavior while reusing the rest of the dispatch machinery.
func (s *Scheduler) SetHooks(tickle func(), idle func(workerID int)) {
	if tickle != nil {
		s.tickle = tickle
	}
	if idle != nil {
		s.idle = idle
	}
}

func (s *Scheduler) defaultTickle() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) defaultIdle(int) {
	<-s.wake
}

// Name returns the scheduler's diagnostic name.
func (s *Scheduler) Name() string { return s.name }

// WorkerCount returns the configured worker count.
func (s *Scheduler) WorkerCount() int { return s.workerCount }

// ActiveCount returns the number of workers currently executing a task.
func (s *Scheduler) ActiveCount() int { return int(atomic.LoadInt32(&s.activeCount)) }

// IdleCount returns the number of workers currently parked in Idle.
func (s *Scheduler) IdleCount() int { return int(atomic.LoadInt32(&s.idleCount)) }

// Stopping reports whether Stop has been called.
func (s *Scheduler) Stopping() bool { return s.stopping.Load() }

// Schedule enqueues a fiber or closure task, returning immediately. If the
// queue was empty and the task accepts any worker, one idle worker is
// tickled.
func (s *Scheduler) Schedule(t *Task) {
	s.queueMu.Lock()
	wasEmpty := len(s.queue) == 0
	s.queue = append(s.queue, t)
	depth := len(s.queue)
	s.queueMu.Unlock()

	if s.metrics != nil {
		s.metrics.SchedulerQueueDepth.Set(float64(depth))
	}
	if wasEmpty && t.Affinity == AnyWorker {
		s.tickle()
	}
}

// ScheduleFiber is shorthand for Schedule with a fiber task.
func (s *Scheduler) ScheduleFiber(f *fiber.Fiber, affinity int) {
	s.Schedule(&Task{Fiber: f, Affinity: affinity})
}

// ScheduleFunc is shorthand for Schedule with a closure task.
func (s *Scheduler) ScheduleFunc(fn func(), affinity int) {
	s.Schedule(&Task{Closure: fn, Affinity: affinity})
}

// Start spins up worker goroutines running the dispatch loop. If the
// scheduler was built WithCallerParticipation, the last worker runs on the
// calling goroutine and Start blocks until Stop drains it; otherwise Start
// returns immediately.
func (s *Scheduler) Start() {
	spawn := s.workerCount
	if s.useCaller {
		spawn--
	}
	for i := 0; i < spawn; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
	if s.useCaller {
		s.wg.Add(1)
		s.workerLoop(spawn)
	}
}

// Stop marks the scheduler as stopping, wakes every idle worker so the
// queue drains, and waits for all workers to exit.
func (s *Scheduler) Stop() {
	s.stopping.Store(true)
	for i := 0; i < s.workerCount; i++ {
		s.tickle()
	}
	s.wg.Wait()
}

// dequeue implements the scan-skip-take dispatch step. It scans the queue
// in order, skipping tasks pinned to a different worker and fiber tasks
// that are transiently RUNNING (an I/O add-then-suspend race), then
// removes and returns the first match. The second return value reports
// whether another eligible task was left behind for a different worker to
// pick up.
func (s *Scheduler) dequeue(workerID int) (*Task, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	tickleMe := false
	for i, t := range s.queue {
		if t.Affinity != AnyWorker && t.Affinity != workerID {
			continue
		}
		if t.Fiber != nil && t.Fiber.State() == fiber.RUNNING {
			continue
		}
		s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
		if s.metrics != nil {
			s.metrics.SchedulerQueueDepth.Set(float64(len(s.queue)))
		}
		for _, rest := range s.queue {
			if rest.Affinity != workerID {
				tickleMe = true
				break
			}
		}
		return t, tickleMe
	}
	return nil, false
}

// workerLoop is the per-worker dispatch loop.
func (s *Scheduler) workerLoop(workerID int) {
	defer s.wg.Done()
	if len(s.workerCPUs) > 0 {
		cpu := s.workerCPUs[workerID%len(s.workerCPUs)]
		if err := affinity.SetAffinity(cpu); err != nil {
			s.log.Warn("sched: worker CPU pin failed", logging.Int("worker", workerID), logging.Int("cpu", cpu), logging.Err(err))
		}
	}
	var callback *fiber.Fiber

	for {
		task, tickleMe := s.dequeue(workerID)
		if tickleMe {
			s.tickle()
		}

		switch {
		case task != nil && task.Fiber != nil:
			s.enterActive()
			task.Fiber.Resume()
			s.leaveActive()
		case task != nil && task.Closure != nil:
			s.enterActive()
			callback = s.runClosure(callback, task.Closure)
			s.leaveActive()
		default:
			if s.stopping.Load() {
				s.queueMu.Lock()
				empty := len(s.queue) == 0
				s.queueMu.Unlock()
				if empty {
					return
				}
			}
			s.enterIdle()
			s.idle(workerID)
			s.leaveIdle()
		}
	}
}

func (s *Scheduler) enterActive() {
	n := atomic.AddInt32(&s.activeCount, 1)
	if s.metrics != nil {
		s.metrics.SchedulerActiveWorkers.Set(float64(n))
	}
}

func (s *Scheduler) leaveActive() {
	n := atomic.AddInt32(&s.activeCount, -1)
	if s.metrics != nil {
		s.metrics.SchedulerActiveWorkers.Set(float64(n))
	}
}

func (s *Scheduler) enterIdle() {
	n := atomic.AddInt32(&s.idleCount, 1)
	if s.metrics != nil {
		s.metrics.SchedulerIdleWorkers.Set(float64(n))
	}
}

func (s *Scheduler) leaveIdle() {
	n := atomic.AddInt32(&s.idleCount, -1)
	if s.metrics != nil {
		s.metrics.SchedulerIdleWorkers.Set(float64(n))
	}
}

// runClosure resumes the worker's reusable callback fiber bound to fn,
// creating it on first use and resetting it on every subsequent task.
func (s *Scheduler) runClosure(callback *fiber.Fiber, fn func()) *fiber.Fiber {
	wrapped := func(func()) { fn() }
	if callback == nil {
		callback, _ = fiber.Create(wrapped, 0, true)
	} else {
		callback.Reset(wrapped)
	}
	callback.Resume()
	return callback
}
