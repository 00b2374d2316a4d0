package audit

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an invoker failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnreachable: the page could not be loaded (DNS, refused connection, bad status).
	KindUnreachable
	// KindLaunch: the browser or engine process could not be started.
	KindLaunch
	// KindEngine: the engine started but failed while auditing.
	KindEngine
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindLaunch:
		return "launch failure"
	case KindEngine:
		return "engine error"
	}
	return "unknown"
}

// InvokerError is an engine failure for one URL. Fatal errors (for example a
// missing browser binary) affect every URL and abort the run.
type InvokerError struct {
	kind  Kind
	url   string
	fatal bool
	err   error
}

func (e *InvokerError) Error() string {
	return fmt.Sprintf("audit %s: %s: %v", e.url, e.kind, e.err)
}

func (e *InvokerError) Unwrap() error { return e.err }

// Kind returns the failure classification.
func (e *InvokerError) Kind() Kind { return e.kind }

// URL returns the audited URL.
func (e *InvokerError) URL() string { return e.url }

// Fatal reports whether the failure makes further audits pointless.
func (e *InvokerError) Fatal() bool { return e.fatal }

// NewInvokerError returns a non-fatal invoker error.
func NewInvokerError(kind Kind, url string, err error) *InvokerError {
	return &InvokerError{kind: kind, url: url, err: err}
}

// NewFatalError returns an invoker error that aborts the whole run.
func NewFatalError(kind Kind, url string, err error) *InvokerError {
	return &InvokerError{kind: kind, url: url, fatal: true, err: err}
}

// KindOf returns the Kind of an InvokerError in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var ie *InvokerError
	if errors.As(err, &ie) {
		return ie.kind
	}
	return KindUnknown
}

// IsFatal reports whether err carries a fatal InvokerError.
func IsFatal(err error) bool {
	var ie *InvokerError
	return errors.As(err, &ie) && ie.fatal
}

// TimeoutScope says which deadline expired.
type TimeoutScope string

const (
	TimeoutSite    TimeoutScope = "site"
	TimeoutOverall TimeoutScope = "overall"
)

// TimeoutError reports an expired per-site or overall deadline.
type TimeoutError struct {
	scope TimeoutScope
	url   string
	after time.Duration
}

// NewTimeoutError returns a TimeoutError for url.
func NewTimeoutError(scope TimeoutScope, url string, after time.Duration) *TimeoutError {
	return &TimeoutError{scope: scope, url: url, after: after}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("audit %s: %s timeout after %s", e.url, e.scope, e.after)
}

// Scope returns which deadline expired.
func (e *TimeoutError) Scope() TimeoutScope { return e.scope }

// URL returns the URL that was being audited or waiting to be.
func (e *TimeoutError) URL() string { return e.url }

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
