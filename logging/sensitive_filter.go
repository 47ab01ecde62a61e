package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive values in log output.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credentials that may end up inside free-form
// strings such as error messages or echoed request headers.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`),
	regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)[^\s,;&"]{8,}`),
	regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)[^\s,;"]{8,}`),
}

// sensitiveKeyFragments are field-name fragments whose values are always redacted.
var sensitiveKeyFragments = []string{
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"SECRET",
	"PASSWORD",
}

// RedactSensitiveData replaces credentials found in value with RedactedPlaceholder.
//
// Example:
//
//	RedactSensitiveData("Authorization: Bearer abcdef123456") // "Authorization: [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep "api_key=" style prefixes so the line stays readable.
			sub := pattern.FindStringSubmatch(match)
			if len(sub) > 1 && sub[1] != "" {
				return sub[1] + RedactedPlaceholder
			}
			return RedactedPlaceholder
		})
	}
	return result
}

// IsSensitiveField reports whether a field name indicates a credential.
// Matching ignores case and treats "-" like "_".
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(strings.ReplaceAll(fieldName, "-", "_"))
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}
