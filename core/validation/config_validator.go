package validation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"diffusionto/core"
	"diffusionto/db"
	"diffusionto/diffusion"
)

// ValidationResult represents the result of a configuration validation check.
// Warning marks a passing check the user should still look at.
type ValidationResult struct {
	Valid   bool
	Warning bool
	Message string
	Error   error
}

// ConfigValidator checks a loaded core.Config without touching the network.
type ConfigValidator struct {
	cfg     *core.Config
	envPath string
}

// NewConfigValidator creates a ConfigValidator for cfg.
func NewConfigValidator(cfg *core.Config) *ConfigValidator {
	return &ConfigValidator{
		cfg:     cfg,
		envPath: core.DefaultEnvFile,
	}
}

// WithEnvPath sets a custom path for the .env file.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckEnvFile reports whether a .env file is present. The file is optional,
// so a missing one is only a warning.
func (v *ConfigValidator) CheckEnvFile() ValidationResult {
	if err := CheckFileExists(v.envPath); err != nil {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: fmt.Sprintf("%s not found, using process environment only", v.envPath),
		}
	}
	return ValidationResult{
		Valid:   true,
		Message: "Environment file found",
	}
}

// CheckAPIKey validates the configured API key without revealing it.
func (v *ConfigValidator) CheckAPIKey() ValidationResult {
	if v.cfg.APIKey == "" {
		return ValidationResult{
			Valid:   false,
			Message: "API key not configured",
			Error:   core.ErrMissingAuth(),
		}
	}
	if err := diffusion.ValidateAPIKey(v.cfg.APIKey); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "API key malformed",
			Error:   err,
		}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("API key configured (%s)", diffusion.MaskAPIKey(v.cfg.APIKey)),
	}
}

// CheckBaseURL validates DIFFUSION_BASE_URL.
func (v *ConfigValidator) CheckBaseURL() ValidationResult {
	if err := ValidateServerURL(v.cfg.BaseURL); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Base URL invalid",
			Error:   core.ErrInvalidBaseURL(v.cfg.BaseURL, err.Error()),
		}
	}
	result := ValidationResult{Valid: true, Message: v.cfg.BaseURL}
	if v.cfg.BaseURL != diffusion.DefaultBaseURL {
		result.Warning = true
		result.Message = fmt.Sprintf("%s (not the production API)", v.cfg.BaseURL)
	}
	return result
}

// CheckTimeouts validates the poll interval and wait timeout.
func (v *ConfigValidator) CheckTimeouts() ValidationResult {
	if v.cfg.PollInterval <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: "Poll interval must be positive",
			Error:   core.ErrInvalidDuration("DIFFUSION_POLL_INTERVAL", v.cfg.PollInterval.String()),
		}
	}
	if v.cfg.RequestTimeout <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: "Request timeout must be positive",
			Error:   core.ErrInvalidDuration("DIFFUSION_REQUEST_TIMEOUT", v.cfg.RequestTimeout.String()),
		}
	}

	wait := v.cfg.WaitTimeout.String()
	if v.cfg.WaitTimeout < 0 {
		wait = "forever"
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("poll every %s, wait %s", v.cfg.PollInterval, wait),
	}
}

// CheckOutputDir verifies the output directory can be written.
func (v *ConfigValidator) CheckOutputDir() ValidationResult {
	if err := CheckDirWritable(v.cfg.OutputDir); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Output directory unusable",
			Error:   core.ErrOutputDir(v.cfg.OutputDir, err.Error()),
		}
	}
	return ValidationResult{Valid: true, Message: v.cfg.OutputDir}
}

// CheckPresets loads the presets file, if one is configured.
func (v *ConfigValidator) CheckPresets() ValidationResult {
	if v.cfg.PresetsFile == "" {
		return ValidationResult{Valid: true, Message: "No presets file configured"}
	}
	presets, err := core.LoadPresets(v.cfg.PresetsFile)
	if err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Presets file invalid",
			Error:   err,
		}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("%d presets: %v", len(presets), presets.Names()),
	}
}

// CheckHistoryDB verifies the job history database location is writable and,
// when the database already exists, that its schema is one this build can use.
// An older schema is only a warning since it is migrated on next use.
func (v *ConfigValidator) CheckHistoryDB() ValidationResult {
	if !v.cfg.HistoryEnabled() {
		return ValidationResult{Valid: true, Message: "Job history disabled"}
	}
	path := v.cfg.HistoryDBPath
	if err := CheckDirWritable(filepath.Dir(path)); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "History database location unusable",
			Error:   err,
		}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ValidationResult{Valid: true, Message: path + " (created on first use)"}
	}

	version, dirty, err := historySchemaVersion(path)
	switch {
	case err != nil:
		return ValidationResult{
			Valid:   false,
			Message: "History database unreadable",
			Error:   err,
		}
	case dirty:
		return ValidationResult{
			Valid:   false,
			Message: "History database schema is dirty",
			Error:   fmt.Errorf("migration to version %d did not finish", version),
		}
	case version > db.SchemaVersion:
		return ValidationResult{
			Valid:   false,
			Message: "History database is newer than this build",
			Error:   fmt.Errorf("schema version %d, this build supports %d", version, db.SchemaVersion),
		}
	case version < db.SchemaVersion:
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: fmt.Sprintf("%s (schema %d, upgraded to %d on next use)", path, version, db.SchemaVersion),
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s (schema %d)", path, version)}
}

// historySchemaVersion reads the applied migration version of the database
// at path.
func historySchemaVersion(path string) (uint, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := db.OpenSQLite(ctx, db.DefaultConnectionConfig(path))
	if err != nil {
		return 0, false, err
	}
	// MigrationVersion closes conn.
	return db.MigrationVersion(conn)
}
