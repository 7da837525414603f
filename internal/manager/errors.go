package manager

import "fmt"

// startTimeoutError signals the readiness deadline elapsed before the
// server answered a probe.
type startTimeoutError struct {
	socket string
	window string
	tail   string
}

func (e startTimeoutError) Error() string {
	msg := fmt.Sprintf("server not ready within %s on %s", e.window, e.socket)
	if e.tail != "" {
		msg += "; log tail: " + e.tail
	}
	return msg
}

// IsStartTimeout reports whether err indicates an exhausted readiness
// deadline.
func IsStartTimeout(err error) bool {
	_, ok := err.(startTimeoutError)
	return ok
}

// exitedEarlyError signals the child process died before readiness.
type exitedEarlyError struct {
	cause error
	tail  string
}

func (e exitedEarlyError) Error() string {
	msg := "server exited before ready"
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.tail != "" {
		msg += "; log tail: " + e.tail
	}
	return msg
}

// IsProcessExitedEarly reports whether err indicates the child exited
// before answering a readiness probe.
func IsProcessExitedEarly(err error) bool {
	_, ok := err.(exitedEarlyError)
	return ok
}

// shutdownFailedError signals a graceful stop that did not complete;
// escalation to a forced kill was applied.
type shutdownFailedError struct {
	pid   int
	cause error
}

func (e shutdownFailedError) Error() string {
	return fmt.Sprintf("shutdown of pid %d incomplete: %v", e.pid, e.cause)
}

// IsShutdownFailed reports whether err indicates an incomplete graceful
// stop.
func IsShutdownFailed(err error) bool {
	_, ok := err.(shutdownFailedError)
	return ok
}
