package core

import (
	"crypto/tls"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"diffusionto/diffusion"

	"github.com/joho/godotenv"
)

// Default values for settings that have no environment override.
const (
	DefaultWaitTimeout    = 300 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultOutputDir      = "."
	DefaultEnvFile        = ".env"
)

// Config holds all configuration values
type Config struct {
	// API access
	APIKey               string
	BaseURL              string
	AllowSelfSignedCerts bool

	// Timing
	PollInterval   time.Duration // Pause between status checks
	WaitTimeout    time.Duration // How long to wait for an image; negative waits forever
	RequestTimeout time.Duration // Bound on a single HTTP exchange

	// Files
	OutputDir     string // Directory for images saved under their default name
	HistoryDBPath string // SQLite job history; empty disables it
	PresetsFile   string // YAML request presets; empty disables them
	ThumbnailSize int    // Longer side of PNG previews; 0 disables them

	// Logging
	LogFile  string // Rotated log file; empty logs to stderr only
	LogLevel string
	DevMode  bool
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ErrEnvFileInvalid(path, err.Error())
	}
	return nil
}

// LoadConfig reads configuration from environment variables, applying
// defaults. It does not require the API key; call Validate once flags have
// been merged in.
func LoadConfig() (*Config, error) {
	pollInterval, err := ParseDurationEnv("DIFFUSION_POLL_INTERVAL", diffusion.DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	waitTimeout, err := ParseDurationEnv("DIFFUSION_WAIT_TIMEOUT", DefaultWaitTimeout)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := ParseDurationEnv("DIFFUSION_REQUEST_TIMEOUT", DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:               GetEnvOrDefault("DIFFUSION_API_KEY", ""),
		BaseURL:              strings.TrimRight(GetEnvOrDefault("DIFFUSION_BASE_URL", diffusion.DefaultBaseURL), "/"),
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		PollInterval:   pollInterval,
		WaitTimeout:    waitTimeout,
		RequestTimeout: requestTimeout,

		OutputDir:     GetEnvOrDefault("DIFFUSION_OUTPUT_DIR", DefaultOutputDir),
		HistoryDBPath: GetEnvOrDefault("DIFFUSION_HISTORY_DB", ""),
		PresetsFile:   GetEnvOrDefault("DIFFUSION_PRESETS_FILE", ""),
		ThumbnailSize: max(ParseIntEnv("DIFFUSION_THUMBNAIL_SIZE", 0), 0),

		LogFile:  GetEnvOrDefault("DIFFUSION_LOG_FILE", ""),
		LogLevel: GetEnvOrDefault("DIFFUSION_LOG_LEVEL", "info"),
		DevMode:  ParseBoolEnv("DEV_MODE", false),
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings needed to talk to the API.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAuth()
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return ErrInvalidDuration("DIFFUSION_POLL_INTERVAL", c.PollInterval.String())
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidDuration("DIFFUSION_REQUEST_TIMEOUT", c.RequestTimeout.String())
	}
	return nil
}

// HistoryEnabled reports whether jobs should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}

// ClientConfig returns the diffusion client settings derived from c.
func (c *Config) ClientConfig() diffusion.ClientConfig {
	return diffusion.ClientConfig{
		BaseURL:      c.BaseURL,
		PollInterval: c.PollInterval,
		UserAgent:    UserAgent(),
	}
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts
// This should be used for all HTTP requests to external APIs to ensure TLS configuration is respected
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client bounded by cfg.RequestTimeout.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return GetHTTPClient(cfg, timeout)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidBaseURL(raw, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidBaseURL(raw, "scheme must be http or https")
	}
	if u.Host == "" {
		return ErrInvalidBaseURL(raw, "host is required")
	}
	return nil
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return ErrOutputDir(dir, "not a directory")
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return ErrOutputDir(dir, err.Error())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrOutputDir(dir, err.Error())
	}
	return nil
}
