package polling

import (
	"os"
	"time"
)

const (
	DefaultInterval = 1 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// Config holds the polling configuration
type Config struct {
	Interval time.Duration
	// Timeout bounds the whole loop, measured from loop entry.
	Timeout time.Duration
}

// NewConfig creates a polling configuration, honouring IQAUDIT_POLL_INTERVAL
// and IQAUDIT_POLL_TIMEOUT overrides (Go duration syntax, e.g. "2s", "5m").
func NewConfig() *Config {
	cfg := &Config{Interval: DefaultInterval, Timeout: DefaultTimeout}

	if v := os.Getenv("IQAUDIT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("IQAUDIT_POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg
}
