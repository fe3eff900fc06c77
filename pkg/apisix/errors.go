package apisix

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired        = errors.New("config is required")
	ErrAdminURLRequired      = errors.New("admin URL is required")
	ErrIDRequired            = errors.New("id is required")
	ErrDataRequired          = errors.New("data is required")
	ErrUnsupportedOperation  = errors.New("unsupported operation type")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrUnsupportedStrategy   = errors.New("unsupported conflict resolution strategy")
	ErrFeatureUnsupported    = errors.New("feature not supported by server")
	ErrSensitiveFieldMissing = errors.New("sensitive field missing from source entity")
	ErrEntityNotFound        = errors.New("entity not found")
	ErrBatchAborted          = errors.New("batch aborted")
	ErrEmptyBody             = errors.New("empty response body")
	ErrUnknownEnvelope       = errors.New("unrecognized response envelope")
)

// HTTPError is a non-2xx response from the gateway.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// NewHTTPError builds an HTTPError and extracts the server message from the body.
func NewHTTPError(method, url string, statusCode int, body []byte) *HTTPError {
	return &HTTPError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
		Message:    errorMessage(body),
	}
}

// errorMessage pulls error_msg or message out of an admin API error body.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		ErrorMsg string `json:"error_msg"`
		Message  string `json:"message"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrorMsg != "" {
			return payload.ErrorMsg
		}

		if payload.Message != "" {
			return payload.Message
		}
	}

	return strings.TrimSpace(string(body))
}

// NetworkError is a connection-level failure (DNS, refused, reset).
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError is a request that exceeded its deadline. It is a network error
// that callers can tell apart from the others when deciding whether to retry.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
	Err     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s: %v", e.Method, e.URL, e.Timeout, e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ParseError is a malformed import payload or response body.
type ParseError struct {
	Format string
	// Index is the record index for per-record failures, -1 for the whole payload.
	Index int
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("parsing %s record %d: %v", e.Format, e.Index, e.Err)
	}

	return fmt.Sprintf("parsing %s payload: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError is caller data that fails a pre-flight check. It is always
// returned before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}

	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsBadRequest reports whether err is a 400 from the gateway.
func IsBadRequest(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

// IsClientError reports whether err is any 4xx from the gateway.
func IsClientError(err error) bool {
	httpErr := &HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}

	return false
}

// IsNetworkError reports whether err is a connection-level failure, timeouts included.
func IsNetworkError(err error) bool {
	netErr := &NetworkError{}
	if errors.As(err, &netErr) {
		return true
	}

	return IsTimeout(err)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	timeoutErr := &TimeoutError{}

	return errors.As(err, &timeoutErr)
}

// IsValidationError reports whether err is a pre-flight validation failure.
func IsValidationError(err error) bool {
	validationErr := &ValidationError{}

	return errors.As(err, &validationErr)
}

// IsParseError reports whether err is a parse failure.
func IsParseError(err error) bool {
	parseErr := &ParseError{}

	return errors.As(err, &parseErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	httpErr := &HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}

func hasStatus(err error, status int) bool {
	return StatusCode(err) == status
}
