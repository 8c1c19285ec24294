//go:build !linux
// +build !linux

// File: transport/tcp/hookedaccept_other.go
// Non-Linux platforms keep the plain blocking accept loop: see
// rpcsession/hooked_other.go for why raw non-blocking fd hooking is
// Linux-only today (the reactor's Windows IOCP backend is completion-based,
// not readiness-based).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tcp

import "errors"

var errHookingUnsupported = errors.New("tcp: reactor accept hooking unsupported on this platform")

const hookingSupported = false

func setNonblock(fd uintptr) error          { return errHookingUnsupported }
func rawAccept(fd uintptr) (uintptr, error) { return 0, errHookingUnsupported }
