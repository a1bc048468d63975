// Package config loads iqaudit settings from flags, environment, .env and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"iqaudit/internal/polling"
)

// Keys understood by Load. Environment variables use the IQAUDIT_ prefix with
// dots replaced by underscores, e.g. IQAUDIT_IQ_TOKEN.
const (
	KeyURL          = "iq.url"
	KeyUsername     = "iq.username"
	KeyToken        = "iq.token"
	KeyApplication  = "iq.application"
	KeyStage        = "iq.stage"
	KeyTimeout      = "iq.timeout"
	KeyPollInterval = "iq.poll_interval"
	KeySourceID     = "iq.source_id"

	KeyHistoryType = "history.type"
	KeyHistoryDSN  = "history.dsn"

	KeySlackWebhook = "notify.slack.webhook_url"
	KeySlackToken   = "notify.slack.token"
	KeySlackChannel = "notify.slack.channel"

	KeyDebug   = "log.debug"
	KeyLogFile = "log.file"
)

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"server-url":    KeyURL,
	"user":          KeyUsername,
	"token":         KeyToken,
	"application":   KeyApplication,
	"stage":         KeyStage,
	"timeout":       KeyTimeout,
	"poll-interval": KeyPollInterval,
	"source-id":     KeySourceID,
	"history-type":  KeyHistoryType,
	"history-dsn":   KeyHistoryDSN,
	"debug":         KeyDebug,
	"log-file":      KeyLogFile,
}

// legacyEnv lists unprefixed variables honoured when the prefixed one is unset.
var legacyEnv = map[string]string{
	KeyURL:      "IQ_URL",
	KeyUsername: "IQ_USERNAME",
	KeyToken:    "IQ_TOKEN",
}

// SetDefaults registers the default value of every key. The polling defaults
// honour IQAUDIT_POLL_TIMEOUT and IQAUDIT_POLL_INTERVAL.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStage, "develop")
	poll := polling.NewConfig()
	v.SetDefault(KeyTimeout, poll.Timeout.String())
	v.SetDefault(KeyPollInterval, poll.Interval.String())
	v.SetDefault(KeySourceID, "iqaudit")
	v.SetDefault(KeyHistoryType, "sqlite")
	v.SetDefault(KeyHistoryDSN, ".iqaudit.db")
	v.SetDefault(KeyDebug, false)
}

// Load initializes v from .env, the environment and, if present, a config
// file. When cfgFile is empty, ./iqaudit.yaml is used if it exists. The
// config file is never written.
func Load(v *viper.Viper, cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("iqaudit")
	}

	v.SetEnvPrefix("IQAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if val := os.Getenv(env); val != "" {
			v.SetDefault(key, val)
		}
	}

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// BindFlags binds every known flag present in fs to its configuration key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}
