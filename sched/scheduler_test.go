package sched_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/sched"
)

func TestScheduleFuncRunsOnAnyWorker(t *testing.T) {
	s := sched.New("t", 4)
	s.Start()
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	s.ScheduleFunc(func() { ran = true; wg.Done() }, sched.AnyWorker)

	waitOrTimeout(t, &wg, time.Second)
	if !ran {
		t.Fatalf("expected closure to run")
	}
}

// TestFairnessAllTasksEventuallyRun checks that N non-blocking tasks
// submitted with affinity -1 to K>0 workers all eventually run.
func TestFairnessAllTasksEventuallyRun(t *testing.T) {
	const n = 200
	s := sched.New("fair", 4)
	s.Start()
	defer s.Stop()

	var count int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.ScheduleFunc(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}, sched.AnyWorker)
	}
	waitOrTimeout(t, &wg, 5*time.Second)
	if got := atomic.LoadInt64(&count); got != n {
		t.Fatalf("expected all %d tasks to run, got %d", n, got)
	}
}

func TestAffinityPinnedTaskRuns(t *testing.T) {
	s := sched.New("pin", 2)
	s.Start()
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	pinned := -1
	s.ScheduleFunc(func() {
		pinned = 1
		wg.Done()
	}, 1)
	waitOrTimeout(t, &wg, time.Second)
	if pinned != 1 {
		t.Fatalf("expected task to run, got pinned=%d", pinned)
	}
}

// TestWithWorkerCPUsDispatchesNormally checks that a pin failure (expected
// in sandboxed or unprivileged test environments) never blocks dispatch;
// WithWorkerCPUs only logs on error.
func TestWithWorkerCPUsDispatchesNormally(t *testing.T) {
	s := sched.New("pinned", 2, sched.WithWorkerCPUs([]int{0, 1}))
	s.Start()
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	s.ScheduleFunc(func() { wg.Done() }, sched.AnyWorker)
	waitOrTimeout(t, &wg, time.Second)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out waiting for tasks")
	}
}
