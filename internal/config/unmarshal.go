package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/log"
)

// parseField resolves an optional string-or-reference field
func parseField(raw json.RawMessage, name string, dst *string) error {
	if raw == nil {
		return nil
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = value
	return nil
}

func parseDuration(raw, name string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Addr           json.RawMessage `json:"addr"`
		BaseURL        json.RawMessage `json:"baseURL"`
		Name           string          `json:"name"`
		AllowedOrigins []string        `json:"allowedOrigins"`
		SessionKey     json.RawMessage `json:"sessionKey"`
		SigningKey     json.RawMessage `json:"signingKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.AllowedOrigins = raw.AllowedOrigins

	if err := parseField(raw.Addr, "addr", &s.Addr); err != nil {
		return err
	}
	if err := parseField(raw.BaseURL, "baseURL", &s.BaseURL); err != nil {
		return err
	}

	var sessionKey, signingKey string
	if err := parseField(raw.SessionKey, "sessionKey", &sessionKey); err != nil {
		return err
	}
	if err := parseField(raw.SigningKey, "signingKey", &signingKey); err != nil {
		return err
	}
	s.SessionKey = Secret(sessionKey)
	s.SigningKey = Secret(signingKey)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for IdentityProviderConfig
func (i *IdentityProviderConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		AuthorizeURL json.RawMessage `json:"authorizeURL"`
		ClientID     json.RawMessage `json:"clientId"`
		RedirectURI  json.RawMessage `json:"redirectUri"`
		Scopes       []string        `json:"scopes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	i.Scopes = raw.Scopes
	if err := parseField(raw.AuthorizeURL, "authorizeURL", &i.AuthorizeURL); err != nil {
		return err
	}
	if err := parseField(raw.ClientID, "clientId", &i.ClientID); err != nil {
		return err
	}
	return parseField(raw.RedirectURI, "redirectUri", &i.RedirectURI)
}

// UnmarshalJSON implements custom unmarshaling for ExchangeConfig
func (e *ExchangeConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		EntitlementsURL json.RawMessage `json:"entitlementsURL"`
		GeoURL          json.RawMessage `json:"geoURL"`
		Timeout         string          `json:"timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := parseField(raw.EntitlementsURL, "entitlementsURL", &e.EntitlementsURL); err != nil {
		return err
	}
	if err := parseField(raw.GeoURL, "geoURL", &e.GeoURL); err != nil {
		return err
	}
	return parseDuration(raw.Timeout, "timeout", &e.Timeout)
}

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseURL        json.RawMessage                 `json:"baseURL"`
		ClientVersion  json.RawMessage                 `json:"clientVersion"`
		ClientPlatform *credentials.PlatformDescriptor `json:"clientPlatform"`
		Timeout        string                          `json:"timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.ClientPlatform != nil {
		a.ClientPlatform = *raw.ClientPlatform
	}
	if err := parseField(raw.BaseURL, "baseURL", &a.BaseURL); err != nil {
		return err
	}
	if err := parseField(raw.ClientVersion, "clientVersion", &a.ClientVersion); err != nil {
		return err
	}
	return parseDuration(raw.Timeout, "timeout", &a.Timeout)
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timeout         string `json:"timeout"`
		CleanupInterval string `json:"cleanupInterval"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := parseDuration(raw.Timeout, "timeout", &s.Timeout); err != nil {
		return err
	}
	return parseDuration(raw.CleanupInterval, "cleanupInterval", &s.CleanupInterval)
}

// applyDefaults fills every unset field with its upstream default
// Default returns a config with every default applied, for commands that run
// without a config file. The redirect URI is the one registered for
// DefaultClientID, whose fragment the user copies from the address bar.
func Default() Config {
	c := Config{
		Version: SupportedVersion,
		IdentityProvider: IdentityProviderConfig{
			RedirectURI: DefaultRedirectURI,
		},
	}
	applyDefaults(&c)
	return c
}

func applyDefaults(c *Config) {
	if c.Server.Name == "" {
		c.Server.Name = "riot-front"
	}
	if c.IdentityProvider.AuthorizeURL == "" {
		c.IdentityProvider.AuthorizeURL = DefaultAuthorizeURL
	}
	if c.IdentityProvider.ClientID == "" {
		c.IdentityProvider.ClientID = DefaultClientID
	}
	if c.IdentityProvider.RedirectURI == "" && c.Server.BaseURL != "" {
		c.IdentityProvider.RedirectURI = c.Server.BaseURL + "/callback"
	}
	if len(c.IdentityProvider.Scopes) == 0 {
		c.IdentityProvider.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.Exchange.EntitlementsURL == "" {
		c.Exchange.EntitlementsURL = DefaultEntitlementsURL
	}
	if c.Exchange.GeoURL == "" {
		c.Exchange.GeoURL = DefaultGeoURL
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.ClientVersion == "" {
		c.API.ClientVersion = DefaultClientVersion
	}
	if c.API.ClientPlatform == (credentials.PlatformDescriptor{}) {
		c.API.ClientPlatform = credentials.DefaultPlatform
	}
	if c.Sessions.Timeout == 0 {
		c.Sessions.Timeout = DefaultSessionTimeout
	}
	if c.Sessions.CleanupInterval == 0 {
		c.Sessions.CleanupInterval = DefaultCleanupInterval
	}

	log.LogTraceWithFields("config", "Applied defaults", map[string]any{
		"authorizeURL": c.IdentityProvider.AuthorizeURL,
		"redirectUri":  c.IdentityProvider.RedirectURI,
	})
}
