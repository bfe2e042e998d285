// Package pluginerr defines the single error shape that crosses the pipeline
// boundary. Configuration problems, engine failures and failing reports are
// all translated into an *Error before a caller sees them.
package pluginerr

import (
	"errors"
	"fmt"
)

// Plugin is the identity stamped on every error produced by crankfeed.
const Plugin = "crankfeed"

// Kind classifies an Error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInvocation    Kind = "invocation"
	KindReportFailure Kind = "report-failure"
)

var (
	// ErrConfiguration matches errors raised while building a pipeline.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvocation matches failures returned by an engine call.
	ErrInvocation = errors.New("invocation error")

	// ErrReportFailure matches reports that completed but flagged failures.
	ErrReportFailure = errors.New("report failure")
)

// Error is the uniform tagged error.
type Error struct {
	Plugin  string
	Kind    Kind
	Message string
	Cause   error
	Details any

	// Operation-specific metadata, empty when not relevant.
	Method       string
	Parameter    string
	ExpectedType string
}

// Fields are the caller-supplied parts of an Error.
type Fields struct {
	Kind         Kind
	Message      string
	Cause        error
	Details      any
	Method       string
	Parameter    string
	ExpectedType string
}

// New builds an Error from fields. Plugin is always set; when no message is
// given the cause's message is used.
func New(f Fields) *Error {
	msg := f.Message
	if msg == "" && f.Cause != nil {
		msg = f.Cause.Error()
	}
	return &Error{
		Plugin:       Plugin,
		Kind:         f.Kind,
		Message:      msg,
		Cause:        f.Cause,
		Details:      f.Details,
		Method:       f.Method,
		Parameter:    f.Parameter,
		ExpectedType: f.ExpectedType,
	}
}

// Wrap translates an arbitrary failure into an Error of the given kind.
// An error that is already an *Error is returned unchanged.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return New(Fields{Kind: kind, Cause: err})
}

func (e *Error) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s(%s): %s", e.Plugin, e.Method, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Plugin, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrInvocation:
		return e.Kind == KindInvocation
	case ErrReportFailure:
		return e.Kind == KindReportFailure
	}
	return false
}
