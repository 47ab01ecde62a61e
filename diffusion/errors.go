package diffusion

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	// ErrInvalidParameter indicates a request field or client argument outside
	// its accepted set. Returned before any network traffic.
	ErrInvalidParameter = errors.New("diffusion: invalid parameter")

	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("diffusion: network error")

	// ErrAPI indicates the vendor answered with a non-success status.
	ErrAPI = errors.New("diffusion: api error")

	// ErrTimeout indicates CheckAndWait gave up at its deadline.
	ErrTimeout = errors.New("diffusion: timed out waiting for image")

	// ErrDecode indicates a response body or image payload could not be decoded.
	ErrDecode = errors.New("diffusion: decode error")

	// ErrJobFailed indicates the vendor reported the job as failed.
	ErrJobFailed = errors.New("diffusion: image generation failed")
)

// ParameterError describes a rejected parameter.
type ParameterError struct {
	Field  string
	Value  string
	Reason string
}

func newParameterError(field, value, reason string) *ParameterError {
	return &ParameterError{Field: field, Value: value, Reason: reason}
}

func (e *ParameterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("diffusion: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("diffusion: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidParameter) hold.
func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// APIError carries the vendor's HTTP status and message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("diffusion: api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("diffusion: api error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap makes errors.Is(err, ErrAPI) hold.
func (e *APIError) Unwrap() error {
	return ErrAPI
}

// TimeoutError reports how long CheckAndWait waited and how many status
// checks it issued before giving up.
type TimeoutError struct {
	Token    Token
	Waited   time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("diffusion: timed out waiting for image %s after %s (%d checks)",
		e.Token, e.Waited.Round(time.Millisecond), e.Attempts)
}

// Unwrap makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// JobFailedError carries the failure reason reported for a job.
type JobFailedError struct {
	Token  Token
	Reason string
}

func (e *JobFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("diffusion: image %s failed", e.Token)
	}
	return fmt.Sprintf("diffusion: image %s failed: %s", e.Token, e.Reason)
}

// Unwrap makes errors.Is(err, ErrJobFailed) hold.
func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}

// networkError wraps a transport failure so it matches both ErrNetwork and
// the underlying cause (e.g. context.DeadlineExceeded).
func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}

// decodeError wraps a decoding failure.
func decodeError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDecode, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrDecode, what, err)
}

// Kind names the error kind of err for logs and exit codes:
// "invalid_parameter", "network", "api", "timeout", "decode", "job_failed"
// or "" when err did not originate in this package.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrJobFailed):
		return "job_failed"
	default:
		return ""
	}
}
