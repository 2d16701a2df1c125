package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeStatus     ErrorType = "status"
	ErrorTypeFilesystem ErrorType = "filesystem"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeExhausted  ErrorType = "exhausted"
)

// ErrAttemptsExhausted is matched by errors.Is on every exhausted fetch
var ErrAttemptsExhausted = stderrors.New("all fetch attempts exhausted")

// Error is a typed failure carrying the URL or path it concerns
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	switch {
	case e.URL != "":
		msg += " [" + e.URL + "]"
	case e.Path != "":
		msg += " [" + e.Path + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrAttemptsExhausted) match exhausted fetches
func (e *Error) Is(target error) bool {
	return target == ErrAttemptsExhausted && e.Type == ErrorTypeExhausted
}

// Network wraps a transport failure for url
func Network(url string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: "request failed", URL: url, Err: err}
}

// Status reports a non-success HTTP status for url
func Status(url string, code int) *Error {
	return &Error{Type: ErrorTypeStatus, Message: "unexpected status", Code: code, URL: url}
}

// Filesystem wraps a failure touching path
func Filesystem(path, message string, err error) *Error {
	return &Error{Type: ErrorTypeFilesystem, Message: message, Path: path, Err: err}
}

// Parsing wraps a failure to interpret a response body from url
func Parsing(url string, err error) *Error {
	return &Error{Type: ErrorTypeParsing, Message: "could not parse document", URL: url, Err: err}
}

// Exhausted reports that every one of attempts fetches of url failed
func Exhausted(url string, attempts int, last error) *Error {
	return &Error{
		Type:    ErrorTypeExhausted,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		URL:     url,
		Err:     last,
	}
}

// TypeOf returns the ErrorType of the first *Error in err's chain, or ""
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}
