package diffusion

import (
	"net/url"
	"strings"
	"unicode"
)

// API key length bounds. diffusion.to keys are opaque; the bounds only catch
// obviously truncated or pasted-garbage values.
const (
	MinAPIKeyLength = 8
	MaxAPIKeyLength = 256
)

// ValidateAPIKey checks that apiKey is usable as a bearer credential: non-empty
// after trimming, within the length bounds and free of whitespace or control
// characters (which cannot appear in an HTTP header value).
//
// Example:
//
//	ValidateAPIKey("")              // ErrInvalidParameter: must not be empty
//	ValidateAPIKey("abc def12345")  // ErrInvalidParameter: whitespace
func ValidateAPIKey(apiKey string) error {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return newParameterError("api_key", "", "must not be empty")
	}
	if len(trimmed) < MinAPIKeyLength {
		return newParameterError("api_key", "", "is too short")
	}
	if len(trimmed) > MaxAPIKeyLength {
		return newParameterError("api_key", "", "is too long")
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r > unicode.MaxASCII {
			return newParameterError("api_key", "", "contains characters not allowed in an HTTP header")
		}
	}
	return nil
}

// MaskAPIKey returns a form of apiKey safe for logs: the first four and last
// four characters with the middle replaced.
//
//	MaskAPIKey("abcd1234efgh5678") // "abcd****5678"
//	MaskAPIKey("")                 // "[empty]"
func MaskAPIKey(apiKey string) string {
	trimmed := strings.TrimSpace(apiKey)
	switch {
	case trimmed == "":
		return "[empty]"
	case len(trimmed) <= 8:
		return strings.Repeat("*", len(trimmed))
	default:
		return trimmed[:4] + "****" + trimmed[len(trimmed)-4:]
	}
}

// validateBaseURL requires an absolute http(s) URL without query or fragment.
func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", newParameterError("base_url", raw, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", newParameterError("base_url", raw, "scheme must be http or https")
	}
	if u.Host == "" {
		return "", newParameterError("base_url", raw, "host is required")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", newParameterError("base_url", raw, "must not contain a query or fragment")
	}
	return strings.TrimRight(u.String(), "/"), nil
}
