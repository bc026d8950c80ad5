package common

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the release version embedded at build time.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent identifies this service to servers and brokers, e.g. "SolarFlow/1.2.3".
func UserAgent() string {
	return "SolarFlow/" + Version()
}
