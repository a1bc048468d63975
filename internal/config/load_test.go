package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		v := viper.New()
		require.NoError(t, Load(v, ""))

		assert.Equal(t, "develop", v.GetString(KeyStage))
		assert.Equal(t, "iqaudit", v.GetString(KeySourceID))
		assert.Equal(t, "sqlite", v.GetString(KeyHistoryType))
		assert.Equal(t, ".iqaudit.db", v.GetString(KeyHistoryDSN))

		_, err := os.Stat("iqaudit.yaml")
		assert.True(t, os.IsNotExist(err), "config file must not be written")
	})

	t.Run("From Env", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("IQAUDIT_IQ_STAGE", "build")
		t.Setenv("IQAUDIT_IQ_TIMEOUT", "45")

		v := viper.New()
		require.NoError(t, Load(v, ""))
		assert.Equal(t, "build", v.GetString(KeyStage))

		d, err := DurationOf(v, KeyTimeout)
		require.NoError(t, err)
		assert.Equal(t, 45.0, d.Seconds())
	})

	t.Run("Poll Env Defaults", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("IQAUDIT_POLL_TIMEOUT", "90s")
		t.Setenv("IQAUDIT_POLL_INTERVAL", "250ms")

		v := viper.New()
		require.NoError(t, Load(v, ""))
		cfg := IQConfig(v)
		assert.Equal(t, 90*time.Second, cfg.Timeout)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)

		t.Setenv("IQAUDIT_IQ_TIMEOUT", "10")
		v = viper.New()
		require.NoError(t, Load(v, ""))
		assert.Equal(t, 10*time.Second, IQConfig(v).Timeout)
	})

	t.Run("Legacy Env", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("IQ_URL", "http://localhost:8070")
		t.Setenv("IQ_TOKEN", "admin123")

		v := viper.New()
		require.NoError(t, Load(v, ""))
		assert.Equal(t, "http://localhost:8070", v.GetString(KeyURL))
		assert.Equal(t, "admin123", v.GetString(KeyToken))
	})

	t.Run("Dotenv", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		require.NoError(t, os.WriteFile(".env", []byte("IQAUDIT_IQ_APPLICATION=from-dotenv\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("IQAUDIT_IQ_APPLICATION") })

		v := viper.New()
		require.NoError(t, Load(v, ""))
		assert.Equal(t, "from-dotenv", v.GetString(KeyApplication))
	})

	t.Run("Config File", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		path := filepath.Join(dir, "custom.yaml")
		content := "iq:\n  url: http://iq.example.com\n  application: testapp\n  poll_interval: 2s\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		v := viper.New()
		require.NoError(t, Load(v, path))
		assert.Equal(t, "http://iq.example.com", v.GetString(KeyURL))
		assert.Equal(t, "testapp", v.GetString(KeyApplication))
		assert.Equal(t, "develop", v.GetString(KeyStage))
	})

	t.Run("Missing Explicit File", func(t *testing.T) {
		chdir(t, t.TempDir())
		v := viper.New()
		assert.Error(t, Load(v, "does-not-exist.yaml"))
	})
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("application", "", "")
	fs.String("stage", "develop", "")
	fs.Bool("unrelated", false, "")
	require.NoError(t, fs.Parse([]string{"--application", "flagapp"}))

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, BindFlags(v, fs))

	assert.Equal(t, "flagapp", v.GetString(KeyApplication))
	assert.Equal(t, "develop", v.GetString(KeyStage))
}
