package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransportError marks an error as a connection-level failure that the
// inner loop may absorb and retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err so IsTransport classifies it as retryable. Returns nil
// for a nil err.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Err: err}
}

// IsTransport reports whether err is a connection-level failure, as opposed
// to a well-formed but unsuccessful response or a cancellation.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is terminal, never a transport failure, even though
	// context.DeadlineExceeded satisfies net.Error.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if s, ok := status.FromError(err); ok && s.Code() == codes.Unavailable {
		return true
	}

	return false
}
