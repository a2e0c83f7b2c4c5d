package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/atsctl/internal/ats"
)

func newTestViper(t *testing.T, file string) *viper.Viper {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	require.NoError(t, loadConfig(v, file))
	return v
}

func TestConfigDefaults(t *testing.T) {
	config, err := getConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", config.APIURL)
	assert.Equal(t, "table", config.Output)
	assert.Equal(t, ats.DefaultTimeout, config.Timeout)
	assert.Equal(t, ats.IngestTimeout, config.IngestTimeout)
	require.NotNil(t, config.Cache)
	assert.False(t, config.Cache.Enabled)
	require.NotNil(t, config.Stub)
	require.NotNil(t, config.Stub.Gemini)
	assert.Equal(t, "127.0.0.1:8000", config.Stub.Listen)
	assert.False(t, config.Stub.Gemini.Enabled)
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atsctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api-url: https://ats.example.com
output: json
timeout: 3s
cache:
  enabled: true
  redis-url: redis://localhost:6379/0
  ttl: 1m
stub:
  listen: :9000
  gemini:
    enabled: true
    model: gemini-2.5-pro
`), 0o600))

	config, err := getConfig(newTestViper(t, path))
	require.NoError(t, err)

	assert.Equal(t, "https://ats.example.com", config.APIURL)
	assert.Equal(t, "json", config.Output)
	assert.Equal(t, 3*time.Second, config.Timeout)
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, "redis://localhost:6379/0", config.Cache.RedisURL)
	assert.Equal(t, time.Minute, config.Cache.TTL)
	assert.Equal(t, ":9000", config.Stub.Listen)
	assert.True(t, config.Stub.Gemini.Enabled)
	assert.Equal(t, "gemini-2.5-pro", config.Stub.Gemini.Model)
	assert.Equal(t, 3, config.Stub.Gemini.MaxRetries)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ATS_API_URL", "http://10.0.0.5:8000")
	t.Setenv("ATS_CACHE_TTL", "2m")
	t.Setenv("ATS_TOKEN", "from-env")

	config, err := getConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000", config.APIURL)
	assert.Equal(t, 2*time.Minute, config.Cache.TTL)
	assert.Equal(t, "from-env", config.Token)
}

func TestConfigExplicitFileMustExist(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	require.Error(t, loadConfig(v, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestConfigValidation(t *testing.T) {
	tests := map[string]struct {
		key   string
		value any
	}{
		"unknown output":       {key: "output", value: "xml"},
		"api url is not a url": {key: "api-url", value: "localhost"},
		"empty api url":        {key: "api-url", value: ""},
		"bad redis url":        {key: "cache.redis-url", value: "not a url"},
		"negative timeout":     {key: "timeout", value: "-1s"},
		"empty listen":         {key: "stub.listen", value: ""},
		"gemini without model": {key: "stub.gemini.model", value: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			v := newTestViper(t, "")
			v.Set("stub.gemini.enabled", true)
			v.Set(tc.key, tc.value)

			_, err := getConfig(v)
			require.ErrorContains(t, err, "invalid config")
		})
	}
}
