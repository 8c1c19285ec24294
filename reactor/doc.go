// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements a readiness-driven I/O event loop: Reactor
// embeds a sched.Scheduler and a timerwheel.Wheel, registers descriptors
// with a platform poller (epoll on Linux, IOCP on Windows), and budgets
// each poll wait against the wheel's soonest deadline so timers and I/O
// readiness share one dispatch loop.
package reactor
