package iq

import (
	"fmt"
	"strings"
	"time"

	"iqaudit/internal/polling"
)

// DefaultSourceID names this tool in the scan submission path.
const DefaultSourceID = "iqaudit"

// Config describes one audit target. It is a plain value; the orchestrator
// keeps its own copy.
type Config struct {
	BaseURL     string
	Username    string
	Token       string
	PublicAppID string
	Stage       string

	// Timeout is the wall-clock budget for the whole polling phase.
	Timeout      time.Duration
	PollInterval time.Duration
	SourceID     string
}

func (c Config) withDefaults() Config {
	defaults := polling.NewConfig()
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.Interval
	}
	if c.SourceID == "" {
		c.SourceID = DefaultSourceID
	}
	return c
}

// Validate reports every missing or invalid field at once.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "server URL is required")
	}
	if c.Username == "" || c.Token == "" {
		problems = append(problems, "username and token are required")
	}
	if strings.TrimSpace(c.PublicAppID) == "" {
		problems = append(problems, "public application ID is required")
	}
	if strings.TrimSpace(c.Stage) == "" {
		problems = append(problems, "stage is required")
	}
	if c.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive, got: %v", c.Timeout))
	}
	if c.PollInterval < 0 {
		problems = append(problems, fmt.Sprintf("poll interval must be positive, got: %v", c.PollInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid IQ configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
