package plexserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrInvalidToken means the server rejected the credential. It is
// terminal for the current token and short-circuits protocol fallback;
// it is never retried.
var ErrInvalidToken = errors.New("plex token rejected by server")

// ErrNotAuthenticated means an operation was attempted with no credential.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrNotFound means the server answered but had no record for the
// requested identifier.
var ErrNotFound = errors.New("resource not found")

// NetworkError wraps a transport-level failure. These are potentially
// transient and the sessions fetcher retries them.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed payload. Not transient: the server is
// reachable, it just sent garbage.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode payload: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// ServiceError carries an unexpected HTTP status.
type ServiceError struct {
	Status int
}

func (e *ServiceError) Error() string { return fmt.Sprintf("unexpected status %d", e.Status) }

// IsTransient reports whether err is a network failure worth retrying:
// connection lost, not connected, cannot connect to host, or timed out.
// Auth rejections, decode failures, unexpected statuses and explicit
// cancellation are not transient.
func IsTransient(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ENETDOWN,
		syscall.ETIMEDOUT,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	// Dial-phase failures that don't map onto an errno (e.g. DNS).
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
