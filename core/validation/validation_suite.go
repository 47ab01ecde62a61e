package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"diffusionto/core"

	"github.com/fatih/color"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// Errors returns all errors from failed steps.
func (r SuiteResult) Errors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// ValidationSuite runs every configuration check in order and prints a
// colored progress report.
type ValidationSuite struct {
	cfg                 *core.Config
	output              io.Writer
	configValidator     *ConfigValidator
	connectivityChecker *ConnectivityChecker
	checkConnectivity   bool
}

// NewValidationSuite creates a suite for cfg that writes to stderr.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:                 cfg,
		output:              os.Stderr,
		configValidator:     NewConfigValidator(cfg),
		connectivityChecker: NewConnectivityChecker().WithAllowSelfSignedCerts(cfg.AllowSelfSignedCerts),
		checkConnectivity:   true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout sets the timeout for the connectivity check.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.connectivityChecker.WithTimeout(timeout)
	return s
}

// WithConnectivity enables or disables the network check.
func (s *ValidationSuite) WithConnectivity(enabled bool) *ValidationSuite {
	s.checkConnectivity = enabled
	return s
}

// WithEnvPath sets a custom path for the .env file.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.configValidator.WithEnvPath(path)
	return s
}

// Validate runs all checks in sequence. The connectivity check only runs
// when every configuration check passed.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	startTime := time.Now()

	s.printHeader("diffusionto Configuration Check")

	checks := []struct {
		name string
		fn   func() ValidationResult
	}{
		{"Environment File", s.configValidator.CheckEnvFile},
		{"API Key", s.configValidator.CheckAPIKey},
		{"Base URL", s.configValidator.CheckBaseURL},
		{"Timing", s.configValidator.CheckTimeouts},
		{"Output Directory", s.configValidator.CheckOutputDir},
		{"Presets", s.configValidator.CheckPresets},
		{"Job History", s.configValidator.CheckHistoryDB},
	}

	steps := make([]ValidationStep, 0, len(checks)+1)
	for _, check := range checks {
		steps = append(steps, s.runStep(check.name, check.fn))
	}

	var step ValidationStep
	switch {
	case !s.checkConnectivity:
		step = s.skipStep("API Connectivity", "Skipped (offline)")
	case !hasAllPassed(steps):
		step = s.skipStep("API Connectivity", "Skipped due to configuration errors")
	default:
		step = s.runStep("API Connectivity", func() ValidationResult {
			result := s.connectivityChecker.CheckServerConnectivity(ctx, s.cfg.BaseURL)
			msg := result.Message
			if result.Latency > 0 {
				msg = fmt.Sprintf("%s (latency: %v)", msg, result.Latency.Round(time.Millisecond))
			}
			return ValidationResult{Valid: result.Reachable, Message: msg, Error: result.Error}
		})
	}
	steps = append(steps, step)

	result := buildResult(steps, startTime)
	s.printSummary(result)
	return result
}

// runStep executes a validation check with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() ValidationResult) ValidationStep {
	startTime := time.Now()
	result := fn()

	step := ValidationStep{
		Name:    name,
		Message: result.Message,
		Error:   result.Error,
		Latency: time.Since(startTime),
	}
	switch {
	case !result.Valid:
		step.Status = StepFailed
	case result.Warning:
		step.Status = StepWarning
	default:
		step.Status = StepPassed
	}

	s.printStep(step)
	return step
}

func (s *ValidationSuite) skipStep(name, message string) ValidationStep {
	step := ValidationStep{Name: name, Status: StepSkipped, Message: message}
	s.printStep(step)
	return step
}

// hasAllPassed checks that no step failed.
func hasAllPassed(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return false
		}
	}
	return true
}

// buildResult creates a SuiteResult from completed steps.
func buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.PassedSteps++
			result.Warnings++
		}
	}

	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

// printStep prints a completed validation step with status indicator.
func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		detail := step.Error.Error()
		if code := core.GetErrorCode(step.Error); code != "" {
			detail = fmt.Sprintf("[%s] %s", code, detail)
		}
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", detail)
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Configuration OK ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings)",
			result.PassedSteps, result.TotalSteps, result.Warnings)
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Configuration Invalid ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}
