package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestConfigError_Error(t *testing.T) {
	withAction := &ConfigError{Code: "TEST_CODE", Message: "Test message", Action: "Take this action"}
	if got := withAction.Error(); got != "Test message. Take this action" {
		t.Errorf("Error() = %q", got)
	}

	withoutAction := &ConfigError{Code: "TEST_CODE", Message: "Test message only"}
	if got := withoutAction.Error(); got != "Test message only" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConfigErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigError
		code     string
		contains string
	}{
		{"env file", ErrEnvFileInvalid(".env", "line 3"), ErrCodeEnvFileInvalid, ".env"},
		{"missing auth", ErrMissingAuth(), ErrCodeMissingAuth, "DIFFUSION_API_KEY"},
		{"base url", ErrInvalidBaseURL("ftp://x", "bad scheme"), ErrCodeInvalidBaseURL, "ftp://x"},
		{"duration", ErrInvalidDuration("DIFFUSION_WAIT_TIMEOUT", "soon"), ErrCodeInvalidDuration, "DIFFUSION_WAIT_TIMEOUT"},
		{"presets", ErrPresetsInvalid("p.yaml", "bad yaml"), ErrCodePresetsInvalid, "p.yaml"},
		{"preset not found", ErrPresetNotFound("poster", []string{"draft"}), ErrCodePresetNotFound, "draft"},
		{"output dir", ErrOutputDir("/out", "denied"), ErrCodeOutputDir, "/out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want to contain %q", tt.err.Error(), tt.contains)
			}
			if tt.err.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}

func TestIsConfigErrorWrapped(t *testing.T) {
	wrapped := fmt.Errorf("startup: %w", ErrMissingAuth())

	configErr, ok := IsConfigError(wrapped)
	if !ok || configErr.Code != ErrCodeMissingAuth {
		t.Errorf("IsConfigError(wrapped) = %v, %v", configErr, ok)
	}
	if GetErrorCode(fmt.Errorf("plain")) != "" {
		t.Error("GetErrorCode(non-config) should be empty")
	}
}
