package wheretogo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned when a query parameter name cannot be
	// serialized into a cache key.
	ErrInvalidQuery = errors.New("invalid query parameter")
)

// ParseError reports a value that could not be resolved to a timestamp.
type ParseError struct {
	Value any
	Err   error
}

func (pe *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %v as a timestamp: %v", pe.Value, pe.Err)
}

func (pe *ParseError) Unwrap() error {
	return pe.Err
}

// TransportError is returned by a Source when the remote call fails, either
// at the connection level (Err set, StatusCode zero) or with a non-success
// status code.
type TransportError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (te *TransportError) Error() string {
	if te.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", te.URL, te.Err)
	}
	return fmt.Sprintf("request to %s returned %s", te.URL, te.Status)
}

func (te *TransportError) Unwrap() error {
	return te.Err
}
