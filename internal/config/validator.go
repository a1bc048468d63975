package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"iqaudit/internal/history"
	"iqaudit/internal/iq"
)

// Validate checks the loaded values and reports every problem at once.
func Validate(v *viper.Viper) error {
	var errors []string

	for _, key := range []string{KeyURL, KeyUsername, KeyToken, KeyApplication, KeyStage} {
		if strings.TrimSpace(v.GetString(key)) == "" {
			errors = append(errors, fmt.Sprintf("%s is required", key))
		}
	}

	for _, key := range []string{KeyTimeout, KeyPollInterval} {
		d, err := DurationOf(v, key)
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %v", key, d))
		}
	}

	switch strings.ToLower(v.GetString(KeyHistoryType)) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "none":
	default:
		errors = append(errors, fmt.Sprintf("%s must be sqlite, postgres or none, got: %s", KeyHistoryType, v.GetString(KeyHistoryType)))
	}

	if v.GetString(KeySlackToken) != "" && v.GetString(KeySlackChannel) == "" {
		errors = append(errors, fmt.Sprintf("%s is required when %s is set", KeySlackChannel, KeySlackToken))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

// DurationOf reads key as a Go duration. Bare numbers are seconds.
func DurationOf(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a duration: %q", key, raw)
	}
	return d, nil
}

// IQConfig builds the audit target from v. Call Validate first.
func IQConfig(v *viper.Viper) iq.Config {
	timeout, _ := DurationOf(v, KeyTimeout)
	interval, _ := DurationOf(v, KeyPollInterval)
	return iq.Config{
		BaseURL:      v.GetString(KeyURL),
		Username:     v.GetString(KeyUsername),
		Token:        v.GetString(KeyToken),
		PublicAppID:  v.GetString(KeyApplication),
		Stage:        v.GetString(KeyStage),
		Timeout:      timeout,
		PollInterval: interval,
		SourceID:     v.GetString(KeySourceID),
	}
}

// HistoryConfig returns the run history backend, or false when history is
// disabled.
func HistoryConfig(v *viper.Viper) (history.StoreConfig, bool) {
	typ := strings.ToLower(v.GetString(KeyHistoryType))
	if typ == "none" {
		return history.StoreConfig{}, false
	}
	return history.StoreConfig{Type: typ, ConnectionString: v.GetString(KeyHistoryDSN)}, true
}

// Slack holds the optional notification settings.
type Slack struct {
	WebhookURL string
	Token      string
	Channel    string
}

// Enabled reports whether any Slack delivery is configured.
func (s Slack) Enabled() bool {
	return s.WebhookURL != "" || s.Token != ""
}

func SlackConfig(v *viper.Viper) Slack {
	return Slack{
		WebhookURL: v.GetString(KeySlackWebhook),
		Token:      v.GetString(KeySlackToken),
		Channel:    v.GetString(KeySlackChannel),
	}
}
