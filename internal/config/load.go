package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/riot-front/internal/envutil"
	"github.com/dgellow/riot-front/internal/log"
)

// secretFields must be given as {"$env": ...} references, never inline
var secretFields = []string{"sessionKey", "signingKey"}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a config document
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersion) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig checks the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		return fmt.Errorf("server section is required")
	}

	for _, name := range secretFields {
		value, exists := server[name]
		if !exists {
			return fmt.Errorf("server.%s is required", name)
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("server.%s must use environment variable reference for security", name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("server.%s must use {\"$env\": \"VAR_NAME\"} format", name)
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := requireAbsoluteURL("server.baseURL", config.Server.BaseURL); err != nil {
		return err
	}
	if !envutil.IsDev() && !strings.HasPrefix(config.Server.BaseURL, "https://") {
		log.LogWarnWithFields("config", "server.baseURL is not https; secure cookies will not be sent", map[string]any{
			"baseURL": config.Server.BaseURL,
		})
	}
	if len(config.Server.SessionKey) != 32 {
		return fmt.Errorf("server.sessionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(config.Server.SessionKey))
	}
	if len(config.Server.SigningKey) < 32 {
		return fmt.Errorf("server.signingKey must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(config.Server.SigningKey))
	}

	idp := config.IdentityProvider
	if err := requireAbsoluteURL("identityProvider.authorizeURL", idp.AuthorizeURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("identityProvider.redirectUri", idp.RedirectURI); err != nil {
		return err
	}
	if idp.ClientID == "" {
		return fmt.Errorf("identityProvider.clientId is required")
	}

	if err := requireAbsoluteURL("exchange.entitlementsURL", config.Exchange.EntitlementsURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("exchange.geoURL", config.Exchange.GeoURL); err != nil {
		return err
	}
	if config.Exchange.Timeout < 0 {
		return fmt.Errorf("exchange.timeout cannot be negative")
	}

	if !strings.Contains(config.API.BaseURL, "{shard}") {
		log.LogWarnWithFields("config", "api.baseURL has no {shard} placeholder; every shard will hit the same host", map[string]any{
			"baseURL": config.API.BaseURL,
		})
	}
	if config.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}

	if config.Sessions.Timeout < 0 {
		return fmt.Errorf("sessions.timeout cannot be negative")
	}
	if config.Sessions.CleanupInterval < 0 {
		return fmt.Errorf("sessions.cleanupInterval cannot be negative")
	}
	if config.Sessions.CleanupInterval > config.Sessions.Timeout {
		log.LogWarn("Session cleanup interval is greater than session timeout")
	}

	return nil
}

func requireAbsoluteURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, value)
	}
	return nil
}
