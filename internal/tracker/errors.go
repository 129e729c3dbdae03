package tracker

import (
	"errors"
	"fmt"
)

// Error codes for categorizing tracker errors
const (
	ErrCodeAuthentication = "AUTH_ERROR"
	ErrCodeChallenge      = "CHALLENGE_ERROR"
	ErrCodeConfiguration  = "CONFIG_ERROR"
	ErrCodeNetwork        = "NETWORK_ERROR"
	ErrCodeParse          = "PARSE_ERROR"
	ErrCodeExtraction     = "EXTRACTION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND_ERROR"
)

// Error represents a categorized error from a tracker operation.
type Error struct {
	Code      string // Error category code
	Site      string // Name of the affected tracker site
	Message   string // Human-readable message
	URL       string // URL of the page involved, if any
	Retryable bool   // Whether the operation can be retried
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Site != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Site, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Common error instances for comparison
var (
	ErrAuthentication = &Error{Code: ErrCodeAuthentication, Message: "authentication failed"}
	ErrChallenge      = &Error{Code: ErrCodeChallenge, Message: "challenge required"}
	ErrConfiguration  = &Error{Code: ErrCodeConfiguration, Message: "configuration error"}
	ErrNetwork        = &Error{Code: ErrCodeNetwork, Message: "network error"}
	ErrParse          = &Error{Code: ErrCodeParse, Message: "parse error"}
	ErrExtraction     = &Error{Code: ErrCodeExtraction, Message: "extraction failed"}
	ErrNotFound       = &Error{Code: ErrCodeNotFound, Message: "not found"}
)

// NewAuthError creates an authentication error. Bad credentials are
// retryable in the sense that the login request is repeated a fixed
// number of times before the error is surfaced.
func NewAuthError(site string, message string) *Error {
	return &Error{
		Code:      ErrCodeAuthentication,
		Message:   message,
		Site:      site,
		Retryable: true,
	}
}

// NewChallengeError creates an error for a site that explicitly signals
// an anti-bot challenge. Retrying the plain login cannot succeed, so the
// error is surfaced immediately.
func NewChallengeError(site string, message string) *Error {
	return &Error{
		Code:      ErrCodeChallenge,
		Message:   message,
		Site:      site,
		Retryable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(site string, message string) *Error {
	return &Error{
		Code:      ErrCodeConfiguration,
		Message:   message,
		Site:      site,
		Retryable: false,
	}
}

// NewNetworkError creates a network error. The request URL is carried
// for diagnostics.
func NewNetworkError(site, requestURL, message string) *Error {
	return &Error{
		Code:      ErrCodeNetwork,
		Message:   message,
		Site:      site,
		URL:       requestURL,
		Retryable: true,
	}
}

// NewParseError creates a title parsing error.
func NewParseError(site string, message string) *Error {
	return &Error{
		Code:      ErrCodeParse,
		Message:   message,
		Site:      site,
		Retryable: false,
	}
}

// NewExtractionError creates an error for a page whose expected
// structure is missing. The page URL and a human-readable reason are
// carried so callers can report what exactly went missing where.
func NewExtractionError(site, pageURL, reason string) *Error {
	return &Error{
		Code:      ErrCodeExtraction,
		Message:   reason,
		Site:      site,
		URL:       pageURL,
		Retryable: false,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(site, message string) *Error {
	return &Error{
		Code:      ErrCodeNotFound,
		Message:   message,
		Site:      site,
		Retryable: false,
	}
}

// IsRetryable returns whether the error is retryable.
func IsRetryable(err error) bool {
	var trackerErr *Error
	if errors.As(err, &trackerErr) {
		return trackerErr.Retryable
	}
	return false
}

// IsParseError returns whether the error is a title parse error.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsChallengeError returns whether the error is an explicit challenge signal.
func IsChallengeError(err error) bool {
	return errors.Is(err, ErrChallenge)
}
