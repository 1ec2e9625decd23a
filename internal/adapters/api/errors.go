package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so the retry loop and callers can react without string matching
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuthentication: bad signature, expired timestamp, missing keys. Never retried.
	KindAuthentication
	// KindRateLimitExceeded: HTTP 429. Retried with backoff and feeds the local limiter.
	KindRateLimitExceeded
	// KindTransientNetwork: timeouts, connection resets. Retried.
	KindTransientNetwork
	// KindCircuitOpen: rejected locally by the breaker. Never retried by the client.
	KindCircuitOpen
	// KindValidation: malformed request parameters. Never retried.
	KindValidation
	// KindUpstreamServer: HTTP 5xx. Retried up to the attempt cap.
	KindUpstreamServer
)

var (
	ErrAuthentication    = errors.New("authentication failed")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrTransientNetwork  = errors.New("transient network error")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrValidation        = errors.New("invalid request")
	ErrUpstreamServer    = errors.New("upstream server error")

	// ErrRetriesExhausted is matched by every RetriesExhaustedError
	ErrRetriesExhausted = errors.New("retries exhausted")
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimitExceeded:
		return "rate_limited"
	case KindTransientNetwork:
		return "transient_network"
	case KindCircuitOpen:
		return "circuit_open"
	case KindValidation:
		return "validation"
	case KindUpstreamServer:
		return "upstream_server"
	default:
		return "unknown"
	}
}

// Retryable reports whether the client's retry loop may try again
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimitExceeded, KindTransientNetwork, KindUpstreamServer:
		return true
	default:
		return false
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimitExceeded:
		return ErrRateLimitExceeded
	case KindTransientNetwork:
		return ErrTransientNetwork
	case KindCircuitOpen:
		return ErrCircuitOpen
	case KindValidation:
		return ErrValidation
	case KindUpstreamServer:
		return ErrUpstreamServer
	default:
		return nil
	}
}

// APIError is the single error type produced by one request attempt
type APIError struct {
	Kind       ErrorKind
	Class      EndpointClass
	Method     string
	Path       string
	StatusCode int
	RetryAfter time.Duration
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRateLimitExceeded) and friends match on Kind
func (e *APIError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Degraded is true only for circuit rejections
func (e *APIError) Degraded() bool {
	return e.Kind == KindCircuitOpen
}

// RetriesExhaustedError is returned once the retry budget (attempts or elapsed time) is spent.
// It matches both ErrRetriesExhausted and the last attempt's error.
type RetriesExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

// Degraded is always true: the upstream may recover later
func (e *RetriesExhaustedError) Degraded() bool {
	return true
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// KindOf extracts the ErrorKind from any error in the chain
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsDegraded reports whether err means "service temporarily degraded":
// the breaker is open or retries were exhausted. Callers may retry later.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRetriesExhausted)
}

// IsCancellation reports whether err came from the caller's own context
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func validationError(method, path, msg string) *APIError {
	return &APIError{Kind: KindValidation, Method: method, Path: path, Err: errors.New(msg)}
}
