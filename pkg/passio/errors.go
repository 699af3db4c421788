package passio

import (
	"errors"
	"fmt"
)

// ErrTransport is matched by every error returned from the Client's accessors.
var ErrTransport = errors.New("passio: transport failure")

// ErrSystemNotFound is returned by FindSystem when no system matches.
var ErrSystemNotFound = errors.New("passio: system not found")

// TransportError describes a failed round trip: the request could not be
// sent, the server answered with a non-2xx status, or the body was not JSON.
type TransportError struct {
	Op         string // endpoint name, e.g. "stops"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("passio %s: %s returned status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("passio %s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
