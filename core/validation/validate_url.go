// Package validation checks a diffusionto configuration before any image is
// requested and prints a colored report of the results (--check-config).
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateServerURL validates that a URL has a valid format with http or https scheme.
//
// Returns nil if the URL is valid, or an error describing the validation failure.
func ValidateServerURL(serverURL string) error {
	serverURL = strings.TrimSpace(serverURL)

	if serverURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return fmt.Errorf("URL must not contain a query or fragment")
	}

	return nil
}
