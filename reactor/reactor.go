// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface for cross-platform IO multiplexing.
// Reactor (in this package) layers a readiness-driven event registry and
// timer-budgeted poll loop on top of this low-level interface.

package reactor

// EventMask reports which directions a descriptor became ready for.
type EventMask uint8

const (
	Readable EventMask = 1 << iota
	Writable
	ErrEvent
	// Cancelled marks a callback invocation that fired because the
	// registration was removed via CancelEvent/CancelAll rather than
	// because the descriptor became ready. Distinct from DelEvent, which
	// removes a registration without ever invoking its callback.
	Cancelled
)

func (m EventMask) String() string {
	s := ""
	if m&Readable != 0 {
		s += "R"
	}
	if m&Writable != 0 {
		s += "W"
	}
	if m&ErrEvent != 0 {
		s += "E"
	}
	if m&Cancelled != 0 {
		s += "C"
	}
	if s == "" {
		return "-"
	}
	return s
}

// EventReactor defines basic reactor operations across OS platforms.
type EventReactor interface {
	// Register an FD (epoll) or HANDLE (Windows) for IO notifications.
	Register(fd uintptr, userData uintptr) error

	// Unregister removes a previously registered descriptor. Unregistering a
	// descriptor that was never registered is not an error.
	Unregister(fd uintptr) error

	// Wait blocks until events are available, up to timeoutMs (a negative
	// value blocks indefinitely), and writes into the output slice. Returns
	// the number of events written.
	Wait(events []Event, timeoutMs int) (n int, err error)

	// Close cleans up resources (handle/epfd).
	Close() error
}

// Event contains event information returned by Wait call.
type Event struct {
	Fd       uintptr   // File descriptor or handle.
	UserData uintptr   // User-provided data.
	Mask     EventMask // Directions ready; platforms unable to distinguish set both.
}
