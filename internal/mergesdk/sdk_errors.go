package mergesdk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// sdk common
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: server url must be an absolute http(s) url")
	ErrInvalidTimeout   = errors.New("sdk: timeout must not be negative")

	// merge
	ErrTransport         = errors.New("sdk: transport failure")
	ErrServer            = errors.New("sdk: server rejected merge")
	ErrMalformedMetadata = errors.New("sdk: malformed metadata header")
)

// DefaultServerMessage is shown when the server fails without a body.
const DefaultServerMessage = "Error merging files"

// TransportError means the request never produced an http response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ServerError is a non-2xx response. Message is the response body, trimmed.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Detail())
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// Detail is the text a user gets to see for this failure.
func (e *ServerError) Detail() string {
	if e.Message == "" {
		return DefaultServerMessage
	}
	return e.Message
}

// MetadataError is an X-Metadata header that is present but not valid JSON.
type MetadataError struct {
	Raw string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("parse %s header: %v", HeaderMetadata, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

func (e *MetadataError) Is(target error) bool { return target == ErrMalformedMetadata }

// ErrorDetail maps any error returned by Merge to the text shown after "❌ Error: ".
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Detail()
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Err.Error()
	}

	return err.Error()
}

func newServerError(statusCode int, body string) *ServerError {
	return &ServerError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(body),
	}
}
