package clients

import (
	"errors"
	"fmt"
	"net/url"
)

// RequestError is a failed request against the target: a transport error
// (StatusCode 0) or a response with status >= 400.
type RequestError struct {
	Method     string
	Name       string
	StatusCode int
	Err        error
}

// Error implements the error interface. The message omits the request URL
// so failures of the same route aggregate under one message.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Name, e.StatusCode)
	}
	cause := e.Err
	var urlErr *url.Error
	if errors.As(cause, &urlErr) {
		cause = urlErr.Err
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Name, cause)
}

// Unwrap returns the wrapped error
func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode reports the HTTP status of a failed request, or 0 when err is
// not a RequestError or the request never got a response.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
