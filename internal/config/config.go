package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `koanf:"basic_config"`
	Providers   map[string]ProviderConfig `koanf:"providers"`
	Log         LogConfig                 `koanf:"log"`

	secretGenerated bool
}

// ProviderConfig names the endpoint and the two model ids tried for a provider.
// API keys are never part of the configuration; users supply them per session.
type ProviderConfig struct {
	BaseURL       string `koanf:"base_url"`
	Model         string `koanf:"model"`
	FallbackModel string `koanf:"fallback_model"`
}

type BasicConfig struct {
	ServerAddress        string        `koanf:"server_address"`
	Provider             string        `koanf:"provider"`
	PreviewRows          int           `koanf:"preview_rows"`
	DisplayRows          int           `koanf:"display_rows"`
	MaxUploadBytes       int64         `koanf:"max_upload_bytes"`
	SessionTTL           time.Duration `koanf:"session_ttl"`
	SessionSweepInterval time.Duration `koanf:"session_sweep_interval"`
	RequestTimeout       time.Duration `koanf:"request_timeout"`
	SessionSecret        string        `koanf:"session_secret"`
	SecureCookies        bool          `koanf:"secure_cookies"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// KnownProviders lists the providers the generator can construct.
var KnownProviders = []string{ProviderGemini, ProviderOpenAI, ProviderClaude}

// Provider returns the active provider name and its settings.
func (c *Config) Provider() (string, ProviderConfig, error) {
	name := strings.ToLower(c.BasicConfig.Provider)
	prov, ok := c.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %s not configured", name)
	}
	return name, prov, nil
}

// SessionSecretGenerated reports whether the cookie signing secret was
// generated at load time because none was configured.
func (c *Config) SessionSecretGenerated() bool { return c.secretGenerated }

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	b := c.BasicConfig
	if b.ServerAddress == "" {
		return fmt.Errorf("basic_config.server_address is required")
	}
	if !isKnownProvider(b.Provider) {
		return fmt.Errorf("basic_config.provider: invalid provider: %s (want one of %s)", b.Provider, strings.Join(KnownProviders, ", "))
	}
	_, prov, err := c.Provider()
	if err != nil {
		return err
	}
	if prov.Model == "" {
		return fmt.Errorf("providers.%s.model is required", strings.ToLower(b.Provider))
	}
	if prov.FallbackModel == "" {
		return fmt.Errorf("providers.%s.fallback_model is required", strings.ToLower(b.Provider))
	}
	if b.PreviewRows <= 0 {
		return fmt.Errorf("basic_config.preview_rows must be positive, got %d", b.PreviewRows)
	}
	if b.DisplayRows <= 0 {
		return fmt.Errorf("basic_config.display_rows must be positive, got %d", b.DisplayRows)
	}
	if b.MaxUploadBytes <= 0 {
		return fmt.Errorf("basic_config.max_upload_bytes must be positive, got %d", b.MaxUploadBytes)
	}
	if b.SessionTTL <= 0 {
		return fmt.Errorf("basic_config.session_ttl must be positive, got %s", b.SessionTTL)
	}
	if b.SessionSweepInterval <= 0 {
		return fmt.Errorf("basic_config.session_sweep_interval must be positive, got %s", b.SessionSweepInterval)
	}
	if b.RequestTimeout < 0 {
		return fmt.Errorf("basic_config.request_timeout must not be negative, got %s", b.RequestTimeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
