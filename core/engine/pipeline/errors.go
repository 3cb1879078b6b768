// Package pipeline drives a single request descriptor through
// pre-processing, header normalization, dispatch, redirects and
// response decoding.
package pipeline

import "errors"

// Sentinel errors for the taxonomy described in the fetch engine design:
// Stopped, Aborted, UnsupportedScheme, RedirectsExceeded and Transport
// failures. The pipeline never swallows these - it always returns them
// to the caller (the worker), which stamps them onto the descriptor.
var (
	// ErrStopped is returned when the shared stop flag was already set
	// before or during dispatch.
	ErrStopped = errors.New("pipeline: stopped")

	// ErrAborted is returned when the handler's pre-process hook vetoes
	// the request by setting ResponseURL to the Skip sentinel.
	ErrAborted = errors.New("pipeline: aborted by pre-process")

	// ErrUnsupportedScheme is returned when ResponseURL does not parse
	// to an http/https URL with a non-empty host.
	ErrUnsupportedScheme = errors.New("pipeline: unsupported scheme")

	// ErrRedirectsExceeded is returned when a redirect response is
	// received but RedirectsRemaining has already reached zero.
	ErrRedirectsExceeded = errors.New("pipeline: redirects exceeded")
)

// TransportError wraps any network, TLS, DNS or protocol failure raised
// while dispatching a request. The offending connection has already
// been closed and dropped by the time this error is returned.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "pipeline: transport error during " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExtraUsedExternalGunzip is appended to Descriptor.Extra when the
// in-process gzip decoder rejects trailing garbage and the external
// fallback decoder is used instead. It is not an error.
const ExtraUsedExternalGunzip = "used external gunzip"
