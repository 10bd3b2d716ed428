package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrLinkClosed indicates the link is closed and no longer usable.
	ErrLinkClosed = errors.New("link closed")
	// ErrWriteTimeout indicates a write didn't complete within WriteTimeout.
	ErrWriteTimeout = errors.New("write timeout")
	// ErrUnknownScheme indicates no Dialer is registered for the address scheme.
	ErrUnknownScheme = errors.New("unknown address scheme")
)

// DeviceOpenError wraps errors happened when opening a device.
type DeviceOpenError struct {
	Address string
	Err     error
}

// Error implements error.
func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("open device %q: %v", e.Address, e.Err)
}

// Unwrap returns the cause.
func (e *DeviceOpenError) Unwrap() error {
	return e.Err
}

// WriteError indicates a failed or short write.
// The link is closed when it happens.
type WriteError struct {
	Written int
	Size    int
	Err     error
}

// Error implements error.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d/%d bytes: %v", e.Written, e.Size, e.Err)
}

// Unwrap returns the cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}
