package validation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker verifies that the API host answers HTTP requests.
type ConnectivityChecker struct {
	timeout              time.Duration
	allowSelfSignedCerts bool
}

// NewConnectivityChecker creates a new ConnectivityChecker with default settings.
// Default timeout is 10 seconds.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{
		timeout: 10 * time.Second,
	}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// WithAllowSelfSignedCerts configures whether to allow self-signed certificates.
func (c *ConnectivityChecker) WithAllowSelfSignedCerts(allow bool) *ConnectivityChecker {
	c.allowSelfSignedCerts = allow
	return c
}

// CheckServerConnectivity sends a HEAD request to serverURL. Any HTTP
// response, including 4xx and 5xx, counts as reachable.
func (c *ConnectivityChecker) CheckServerConnectivity(ctx context.Context, serverURL string) ConnectivityResult {
	if err := ValidateServerURL(serverURL); err != nil {
		return ConnectivityResult{
			Message: "Invalid URL format",
			Error:   err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, serverURL, nil)
	if err != nil {
		return ConnectivityResult{
			Message: "Failed to create request",
			Error:   err,
		}
	}

	startTime := time.Now()
	resp, err := c.createHTTPClient().Do(req)
	latency := time.Since(startTime)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ConnectivityResult{
				Message: "Connection timed out",
				Latency: latency,
				Error:   fmt.Errorf("no response from %s after %v", serverURL, c.timeout),
			}
		}
		return ConnectivityResult{
			Message: "Connection failed",
			Latency: latency,
			Error:   fmt.Errorf("cannot reach %s: %w", serverURL, err),
		}
	}
	defer resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Server reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}

// createHTTPClient creates an HTTP client with the configured TLS settings.
func (c *ConnectivityChecker) createHTTPClient() *http.Client {
	client := &http.Client{
		Timeout: c.timeout,
	}

	if c.allowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
