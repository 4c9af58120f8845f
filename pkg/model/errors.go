package model

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is the uniform error currency of the quote pipeline.
// StatusCode maps directly to the HTTP response status; Data carries the
// upstream payload or a human-readable message for diagnosis.
type RequestError struct {
	StatusCode int    `json:"statusCode"`
	Data       string `json:"data"`
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request error %d: %s", e.StatusCode, e.Data)
}

// NewRequestError builds a RequestError with a formatted message.
func NewRequestError(statusCode int, format string, args ...any) *RequestError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &RequestError{
		StatusCode: statusCode,
		Data:       fmt.Sprintf(format, args...),
	}
}

// AsRequestError returns err as a *RequestError, wrapping unknown errors
// as an internal 500 so callers always have a status code to surface.
func AsRequestError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return &RequestError{
		StatusCode: http.StatusInternalServerError,
		Data:       err.Error(),
	}
}
