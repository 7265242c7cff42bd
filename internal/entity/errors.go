package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Request errors
	ErrDecode            = errors.New("failed to decode image")
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// Pool errors
	ErrWorkerTimeout    = errors.New("worker did not respond in time")
	ErrWorkerFailed     = errors.New("worker failed to process band")
	ErrInvalidPoolSize  = errors.New("pool size must be at least 1")
	ErrBandMismatch     = errors.New("bands do not form a complete partition")
	ErrEndpointClosed   = errors.New("endpoint closed")
	ErrUnknownTransport = errors.New("unknown transport")
)

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// WorkerTimeoutError reports the first worker whose bounded wait expired.
type WorkerTimeoutError struct {
	WorkerID  int
	RequestID string
	Timeout   time.Duration
}

func (e *WorkerTimeoutError) Error() string {
	return fmt.Sprintf("worker %d did not return band for request %s within %s", e.WorkerID, e.RequestID, e.Timeout)
}

func (e *WorkerTimeoutError) Unwrap() error {
	return ErrWorkerTimeout
}

type WorkerFailedError struct {
	WorkerID  int
	RequestID string
	Reason    string
}

func (e *WorkerFailedError) Error() string {
	return fmt.Sprintf("worker %d failed on request %s: %s", e.WorkerID, e.RequestID, e.Reason)
}

func (e *WorkerFailedError) Unwrap() error {
	return ErrWorkerFailed
}
