package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
// The first four form the closed set of pipeline failures; the rest are
// produced only by the HTTP middleware.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeSelectorGeneration = "SELECTOR_GENERATION_ERROR"
	ErrCodeBrowser            = "BROWSER_ERROR"
	ErrCodeSession            = "SESSION_ERROR"

	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

// NoChunk marks a ScrapeError that is not tied to a particular chunk.
const NoChunk = -1

// ScrapeError is the internal error type carrying an error code plus the
// context it happened in (URL, chunk index).
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	URL     string
	Chunk   int
	// Fatal is set on selector-generation errors that make any further
	// inference pointless (missing credential, rejected credential).
	Fatal bool
	Err   error // wrapped original error
}

func (e *ScrapeError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.URL != "" {
		msg = e.URL + ": " + msg
	}
	if e.Chunk != NoChunk {
		msg += fmt.Sprintf(" (chunk %d)", e.Chunk)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError without URL or chunk context.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Chunk: NoChunk, Err: err}
}

// WithURL returns a copy of e tagged with the URL it happened on.
func (e *ScrapeError) WithURL(url string) *ScrapeError {
	c := *e
	c.URL = url
	return &c
}

// WithChunk returns a copy of e tagged with a chunk index.
func (e *ScrapeError) WithChunk(idx int) *ScrapeError {
	c := *e
	c.Chunk = idx
	return &c
}

// AsScrapeError returns err as a *ScrapeError, wrapping foreign errors in a
// SESSION_ERROR.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeSession, err.Error(), err)
}

// IsCode reports whether err is a ScrapeError with the given code.
func IsCode(err error, code string) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Code == code
}

// IsFatal reports whether err is a selector-generation error that prevents
// any inference from happening.
func IsFatal(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Code == ErrCodeSelectorGeneration && se.Fatal
}
