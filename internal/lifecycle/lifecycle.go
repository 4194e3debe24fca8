// Package lifecycle holds the serve-mode shutdown state read by the health handler.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// shutdownAt is the unix-nano time draining began; zero while serving.
var shutdownAt atomic.Int64

// SetShuttingDown marks the process as draining (true) or serving (false). Call with true
// when SIGTERM/SIGINT is received; /health then answers 503 shutting-down.
func SetShuttingDown(v bool) {
	if !v {
		shutdownAt.Store(0)
		return
	}
	shutdownAt.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shutdownAt.Load() != 0
}

// ShuttingDownSince returns when draining began, or the zero time while serving.
// Repeated SetShuttingDown(true) calls keep the first time.
func ShuttingDownSince() time.Time {
	ns := shutdownAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
