package core

import (
	"context"
	"errors"

	"diffusionto/diffusion"
)

// Exit codes for the command line tool.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	// ExitCodeSuccess indicates the image was produced (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates an unclassified failure (exit code 1)
	ExitCodeError = 1

	// ExitCodeUsage indicates bad flags or an invalid request parameter
	ExitCodeUsage = 2

	// ExitCodeNetwork indicates the API could not be reached
	ExitCodeNetwork = 3

	// ExitCodeAPI indicates the API rejected a call or reported the job failed
	ExitCodeAPI = 4

	// ExitCodeTimeout indicates the image was not ready before the wait deadline
	ExitCodeTimeout = 5

	// ExitCodeDecode indicates a response or image payload could not be decoded
	ExitCodeDecode = 6

	// ExitCodeConfig indicates invalid configuration
	ExitCodeConfig = 7

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C)
	// Convention: 128 + 2 (SIGINT) = 130
	ExitCodeSIGINT = 130
)

// ExitCodeFor maps an error to the exit code the CLI reports for it.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitCodeSIGINT
	}
	if _, ok := IsConfigError(err); ok {
		return ExitCodeConfig
	}

	switch diffusion.Kind(err) {
	case "invalid_parameter":
		return ExitCodeUsage
	case "network":
		return ExitCodeNetwork
	case "api", "job_failed":
		return ExitCodeAPI
	case "timeout":
		return ExitCodeTimeout
	case "decode":
		return ExitCodeDecode
	default:
		return ExitCodeError
	}
}

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeUsage:
		return "usage"
	case ExitCodeNetwork:
		return "network error"
	case ExitCodeAPI:
		return "api error"
	case ExitCodeTimeout:
		return "timeout"
	case ExitCodeDecode:
		return "decode error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	default:
		return "unknown"
	}
}
