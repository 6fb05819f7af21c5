package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscoveryFailed means no matching BLE device was seen within the scan budget.
	ErrDiscoveryFailed = errors.New("discovery failed")
	// ErrResolutionFailed means the widget directory did not yield a socket endpoint.
	ErrResolutionFailed = errors.New("widget resolution failed")
	// ErrTransport wraps connection drops and protocol failures of an open session.
	ErrTransport = errors.New("transport error")
	// ErrMalformedPayload is returned for a payload that cannot become a Sample.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedEncoding marks the 16-bit heart-rate format, which is not parsed.
	ErrUnsupportedEncoding = fmt.Errorf("%w: unsupported 16-bit heart-rate encoding", ErrMalformedPayload)
	// ErrStaleStream is attached to watchdog events.
	ErrStaleStream = errors.New("stale stream")
	// ErrStopped is returned by sources and sinks used after shutdown.
	ErrStopped = errors.New("stopped")
)

// Terminal reports whether err ends the supervisor without a retry.
func Terminal(err error) bool {
	return errors.Is(err, ErrDiscoveryFailed) || errors.Is(err, ErrResolutionFailed)
}
