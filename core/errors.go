package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileInvalid  = "ENV_FILE_INVALID"
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeInvalidBaseURL  = "INVALID_BASE_URL"
	ErrCodeInvalidDuration = "INVALID_DURATION"
	ErrCodePresetsInvalid  = "PRESETS_INVALID"
	ErrCodePresetNotFound  = "PRESET_NOT_FOUND"
	ErrCodeOutputDir       = "OUTPUT_DIR_UNUSABLE"
)

// ErrEnvFileInvalid returns an error for a .env file that exists but cannot be parsed.
func ErrEnvFileInvalid(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileInvalid,
		Message: fmt.Sprintf("Cannot read configuration file %s: %s", path, reason),
		Action:  "Fix the KEY=value syntax or remove the file",
	}
}

// ErrMissingAuth returns an error for a missing API key.
func ErrMissingAuth() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: "Missing diffusion.to API key",
		Action:  "Set DIFFUSION_API_KEY in your environment or .env file, or pass --api-key",
	}
}

// ErrInvalidBaseURL returns an error for an unusable DIFFUSION_BASE_URL.
func ErrInvalidBaseURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidBaseURL,
		Message: fmt.Sprintf("Invalid DIFFUSION_BASE_URL '%s': %s", url, reason),
		Action:  "Set DIFFUSION_BASE_URL to an http(s) URL such as https://diffusion.to, or unset it",
	}
}

// ErrInvalidDuration returns an error for a malformed duration variable.
func ErrInvalidDuration(varName string, value string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidDuration,
		Message: fmt.Sprintf("Invalid duration for %s: '%s'", varName, value),
		Action:  fmt.Sprintf("Set %s to seconds (300) or a Go duration (5m, 90s)", varName),
	}
}

// ErrPresetsInvalid returns an error for a presets file that cannot be loaded.
func ErrPresetsInvalid(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePresetsInvalid,
		Message: fmt.Sprintf("Cannot load presets from %s: %s", path, reason),
		Action:  "Check the YAML syntax and the steps/model/size/orientation values",
	}
}

// ErrPresetNotFound returns an error for an unknown --preset name.
func ErrPresetNotFound(name string, available []string) *ConfigError {
	action := "Define it under 'presets:' in the presets file"
	if len(available) > 0 {
		action = fmt.Sprintf("Available presets: %v", available)
	}
	return &ConfigError{
		Code:    ErrCodePresetNotFound,
		Message: fmt.Sprintf("Preset not found: %s", name),
		Action:  action,
	}
}

// ErrOutputDir returns an error for an output directory that cannot be used.
func ErrOutputDir(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeOutputDir,
		Message: fmt.Sprintf("Cannot use output directory %s: %s", path, reason),
		Action:  "Set DIFFUSION_OUTPUT_DIR to a writable directory",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
