package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents DNS, connection and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// StatusError is returned when the upstream API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	ErrorClass ErrorClass
	URL        string
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s error (status %d) for %s: %s", e.ErrorClass, e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("%s error (status %d) for %s", e.ErrorClass, e.StatusCode, e.URL)
}

// TransportError is returned when no HTTP response was received.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a successful response body is not valid JSON
// for the expected shape.
type DecodeError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to its ErrorClass.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Classify returns the ErrorClass of err, or "" when err did not come from this package.
func Classify(err error) ErrorClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ErrorClass
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorClassNetwork
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return ErrorClassDecode
	}
	return ""
}

// StatusCode extracts the HTTP status code from err.
// The second return value is false for transport and decode errors.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// IsBadRequest reports whether err is an HTTP 400 response.
func IsBadRequest(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == http.StatusBadRequest
}

