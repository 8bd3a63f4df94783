package config

// Default values applied before the config file, environment and flags.
const (
	DefaultServerAddress        = ":8090"
	DefaultProvider             = ProviderGemini
	DefaultPreviewRows          = 10
	DefaultDisplayRows          = 200
	DefaultMaxUploadBytes       = 10 << 20
	DefaultSessionTTL           = "1h"
	DefaultSessionSweepInterval = "10m"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "console"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"basic_config.server_address":         DefaultServerAddress,
		"basic_config.provider":               DefaultProvider,
		"basic_config.preview_rows":           DefaultPreviewRows,
		"basic_config.display_rows":           DefaultDisplayRows,
		"basic_config.max_upload_bytes":       DefaultMaxUploadBytes,
		"basic_config.session_ttl":            DefaultSessionTTL,
		"basic_config.session_sweep_interval": DefaultSessionSweepInterval,
		"basic_config.request_timeout":        "0s",
		"basic_config.session_secret":         "",
		"basic_config.secure_cookies":         false,

		"providers.gemini.model":          "gemini-2.5-pro",
		"providers.gemini.fallback_model": "gemini-1.5-flash",
		"providers.openai.base_url":       "https://api.openai.com/v1",
		"providers.openai.model":          "gpt-4o",
		"providers.openai.fallback_model": "gpt-4o-mini",
		"providers.claude.model":          "claude-sonnet-4-5",
		"providers.claude.fallback_model": "claude-3-5-haiku-latest",

		"log.level":  DefaultLogLevel,
		"log.format": DefaultLogFormat,
	}
}
