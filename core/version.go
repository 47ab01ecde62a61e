package core

// Version is the application version, set at build time via ldflags.
// To inject a version during build, use:
//
//	go build -ldflags "-X diffusionto/core.Version=$(git describe --tags --always)" .
//
// If not set at build time, defaults to "dev".
var Version = "dev"

// BuildTime is the build timestamp, set at build time via ldflags
// (-X diffusionto/core.BuildTime=...). Defaults to "unknown".
var BuildTime = "unknown"

// GitCommit is the git commit hash, set at build time via ldflags
// (-X diffusionto/core.GitCommit=...). Defaults to "unknown".
var GitCommit = "unknown"

// GetVersionInfo returns a formatted version information string.
//
// Examples:
//   - "v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)"
//   - "dev (built unknown, commit unknown)"
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}

// UserAgent returns the User-Agent sent to the API.
func UserAgent() string {
	return "diffusionto/" + Version
}
