package config

import "time"

type HTTPConfig interface {
	GetHTTPTimeout() time.Duration
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

// GetHTTPTimeout returns the fixed per-request timeout applied at the
// transport boundary. Calls exceeding it fail with a transport error.
func (HTTP) GetHTTPTimeout() time.Duration {
	raw := GetEnv("AUTH_HTTP_TIMEOUT", "")
	if raw == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
