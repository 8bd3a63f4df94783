package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddress, cfg.BasicConfig.ServerAddress)
	assert.Equal(t, ProviderGemini, cfg.BasicConfig.Provider)
	assert.Equal(t, 10, cfg.BasicConfig.PreviewRows)
	assert.Equal(t, 200, cfg.BasicConfig.DisplayRows)
	assert.Equal(t, int64(10<<20), cfg.BasicConfig.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.BasicConfig.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.BasicConfig.SessionSweepInterval)
	assert.Zero(t, cfg.BasicConfig.RequestTimeout)
	assert.NotEmpty(t, cfg.BasicConfig.SessionSecret)
	assert.True(t, cfg.SessionSecretGenerated())

	name, prov, err := cfg.Provider()
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)
	assert.Equal(t, "gemini-2.5-pro", prov.Model)
	assert.Equal(t, "gemini-1.5-flash", prov.FallbackModel)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
basic_config:
  server_address: ":9000"
  preview_rows: 5
  request_timeout: 30s
  session_secret: from-file
providers:
  openai:
    model: file-model
log:
  format: json
`)
	t.Setenv("MEDDATA_BASIC_CONFIG__PREVIEW_ROWS", "7")
	t.Setenv("MEDDATA_BASIC_CONFIG__PROVIDER", "OpenAI")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", DefaultServerAddress, "")
	flags.String("log-level", DefaultLogLevel, "")
	require.NoError(t, flags.Parse([]string{"--addr", ":9100"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.BasicConfig.ServerAddress, "flag beats file")
	assert.Equal(t, 7, cfg.BasicConfig.PreviewRows, "env beats file")
	assert.Equal(t, 30*time.Second, cfg.BasicConfig.RequestTimeout)
	assert.Equal(t, "from-file", cfg.BasicConfig.SessionSecret)
	assert.False(t, cfg.SessionSecretGenerated())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level, "unchanged flag keeps default")

	name, prov, err := cfg.Provider()
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "file-model", prov.Model)
	assert.Equal(t, "gpt-4o-mini", prov.FallbackModel)
	assert.Equal(t, "https://api.openai.com/v1", prov.BaseURL)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "basic_config:\n  display_rows: 50\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.BasicConfig.DisplayRows)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "basic_config:\n  preview_rows: 0\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preview_rows must be positive")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			BasicConfig: BasicConfig{
				ServerAddress:        ":8090",
				Provider:             "gemini",
				PreviewRows:          10,
				DisplayRows:          200,
				MaxUploadBytes:       1 << 20,
				SessionTTL:           time.Hour,
				SessionSweepInterval: time.Minute,
			},
			Providers: map[string]ProviderConfig{
				"gemini": {Model: "a", FallbackModel: "b"},
			},
			Log: LogConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.BasicConfig.Provider = "mistral" }, errSubstr: "invalid provider"},
		{name: "provider not configured", mutate: func(c *Config) { c.BasicConfig.Provider = "claude" }, errSubstr: "not configured"},
		{name: "missing model", mutate: func(c *Config) { c.Providers["gemini"] = ProviderConfig{FallbackModel: "b"} }, errSubstr: "model is required"},
		{name: "missing fallback", mutate: func(c *Config) { c.Providers["gemini"] = ProviderConfig{Model: "a"} }, errSubstr: "fallback_model is required"},
		{name: "zero upload limit", mutate: func(c *Config) { c.BasicConfig.MaxUploadBytes = 0 }, errSubstr: "max_upload_bytes"},
		{name: "negative timeout", mutate: func(c *Config) { c.BasicConfig.RequestTimeout = -time.Second }, errSubstr: "request_timeout"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, errSubstr: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}
