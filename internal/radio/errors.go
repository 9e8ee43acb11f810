package radio

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a scan failure
type ErrorKind int

const (
	// ErrKindAdapterEnumerationFailed indicates the host could not list adapters
	// (radio subsystem unavailable, permission denied)
	ErrKindAdapterEnumerationFailed ErrorKind = iota
	// ErrKindNoAdapterFound indicates enumeration succeeded but returned nothing
	ErrKindNoAdapterFound
	// ErrKindScanStartFailed indicates the radio refused to start scanning
	ErrKindScanStartFailed
	// ErrKindEventStreamUnavailable indicates subscribing to or reading discovery events failed
	ErrKindEventStreamUnavailable
	// ErrKindPropertyResolutionFailed indicates properties for one identity could not be read
	ErrKindPropertyResolutionFailed
	// ErrKindScanStopFailed indicates the radio refused to stop scanning
	ErrKindScanStopFailed
	// ErrKindSnapshotFailed indicates the adapter's peripheral snapshot could not be taken
	ErrKindSnapshotFailed
	// ErrKindCancelled indicates the caller cancelled the session
	ErrKindCancelled
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindAdapterEnumerationFailed:
		return "Adapter Enumeration Failed"
	case ErrKindNoAdapterFound:
		return "No Adapter Found"
	case ErrKindScanStartFailed:
		return "Scan Start Failed"
	case ErrKindEventStreamUnavailable:
		return "Event Stream Unavailable"
	case ErrKindPropertyResolutionFailed:
		return "Property Resolution Failed"
	case ErrKindScanStopFailed:
		return "Scan Stop Failed"
	case ErrKindSnapshotFailed:
		return "Snapshot Failed"
	case ErrKindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown Error (%d)", int(k))
	}
}

// ScanError is the single error type surfaced by the scan core
type ScanError struct {
	Kind    ErrorKind // Category of error
	Message string    // Human-readable error message
	Adapter string    // Adapter ID (if known)
	Address string    // Peripheral identity (property resolution only)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Adapter != "" {
		msg += fmt.Sprintf(" [adapter %s]", e.Adapter)
	}
	if e.Address != "" {
		msg += fmt.Sprintf(" [peripheral %s]", e.Address)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewEnumerationError creates an AdapterEnumerationFailed error
func NewEnumerationError(err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindAdapterEnumerationFailed,
		Message: "failed to enumerate radio adapters",
		Err:     err,
	}
}

// NewNoAdapterError creates a NoAdapterFound error
func NewNoAdapterError() *ScanError {
	return &ScanError{
		Kind:    ErrKindNoAdapterFound,
		Message: "no Bluetooth adapters found",
	}
}

// NewStartError creates a ScanStartFailed error
func NewStartError(adapter string, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindScanStartFailed,
		Message: "failed to start scan",
		Adapter: adapter,
		Err:     err,
	}
}

// NewEventStreamError creates an EventStreamUnavailable error
func NewEventStreamError(adapter string, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindEventStreamUnavailable,
		Message: "discovery event stream unavailable",
		Adapter: adapter,
		Err:     err,
	}
}

// NewPropertyError creates a PropertyResolutionFailed error
func NewPropertyError(adapter string, id PeripheralID, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindPropertyResolutionFailed,
		Message: "failed to resolve peripheral properties",
		Adapter: adapter,
		Address: string(id),
		Err:     err,
	}
}

// NewStopError creates a ScanStopFailed error
func NewStopError(adapter string, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindScanStopFailed,
		Message: "failed to stop scan",
		Adapter: adapter,
		Err:     err,
	}
}

// NewSnapshotError creates a SnapshotFailed error
func NewSnapshotError(adapter string, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindSnapshotFailed,
		Message: "failed to read peripheral snapshot",
		Adapter: adapter,
		Err:     err,
	}
}

// NewCancelledError creates a Cancelled error wrapping the context error
func NewCancelledError(adapter string, err error) *ScanError {
	return &ScanError{
		Kind:    ErrKindCancelled,
		Message: "scan cancelled",
		Adapter: adapter,
		Err:     err,
	}
}

// IsKind reports whether err is a *ScanError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of err and whether err is a *ScanError at all
func KindOf(err error) (ErrorKind, bool) {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Kind, true
	}
	return 0, false
}
