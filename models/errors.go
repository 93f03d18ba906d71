package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLaunch          = "BROWSER_LAUNCH_FAILED"
	ErrCodeSessionNotReady = "SESSION_NOT_READY"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeNoRecord        = "NO_RECORD_FOUND"

	// API-level error codes.
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnknownSource = "UNKNOWN_SOURCE"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	URL     string // target URL, set for navigation failures
	Err     error  // wrapped original error
}

func (e *ScrapeError) Error() string {
	msg := e.Message
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", e.Message, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// NewLaunchError reports that the browser engine could not start.
func NewLaunchError(message string, err error) *ScrapeError {
	return NewScrapeError(ErrCodeLaunch, message, err)
}

// NewSessionNotReadyError reports navigation attempted without an open session.
func NewSessionNotReadyError(url string) *ScrapeError {
	return &ScrapeError{
		Code:    ErrCodeSessionNotReady,
		Message: "session is not open",
		URL:     url,
	}
}

// NewNavigationError reports a timeout or transport failure reaching url.
func NewNavigationError(url, message string, err error) *ScrapeError {
	return &ScrapeError{
		Code:    ErrCodeNavigation,
		Message: message,
		URL:     url,
		Err:     err,
	}
}

// NewNoRecordError reports that no strategy resolved the mandatory fields.
func NewNoRecordError(url, message string) *ScrapeError {
	return &ScrapeError{
		Code:    ErrCodeNoRecord,
		Message: message,
		URL:     url,
	}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message, URL: e.URL}
}

// Retryable reports whether retrying the same URL may succeed. Launch and
// navigation failures are transient; a missing record means the source's
// markup no longer matches its strategies.
func (e *ScrapeError) Retryable() bool {
	switch e.Code {
	case ErrCodeLaunch, ErrCodeNavigation:
		return true
	default:
		return false
	}
}

// AsScrapeError returns err as a ScrapeError, wrapping unknown errors as
// INTERNAL_ERROR.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}

// HasCode reports whether err is, or wraps, a ScrapeError with the given code.
func HasCode(err error, code string) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// Retryable reports whether err is a ScrapeError worth retrying.
func Retryable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
