package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dgellow/riot-front/internal/credentials"
)

// SupportedVersion is the config version prefix this build understands
const SupportedVersion = "v0.0.1"

// Upstream defaults. Every one of them can be overridden in the config file.
const (
	DefaultAuthorizeURL    = "https://auth.riotgames.com/authorize"
	DefaultClientID        = "play-valorant-web-prod"
	DefaultRedirectURI     = "https://playvalorant.com/opt_in"
	DefaultEntitlementsURL = "https://entitlements.auth.riotgames.com/api/token/v1"
	DefaultGeoURL          = "https://riot-geo.pas.si.riotgames.com/pas/v1/product/valorant"
	DefaultAPIBaseURL      = "https://pd.{shard}.a.pvp.net"
	DefaultClientVersion   = "release-07.12-shipping-1-2398971"
	DefaultSessionTimeout  = 12 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// DefaultScopes are requested when identityProvider.scopes is empty
var DefaultScopes = []string{"account", "openid"}

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr           string   `json:"addr"`
	BaseURL        string   `json:"baseURL"`
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`

	// SessionKey encrypts the session cookie. Exactly 32 bytes.
	SessionKey Secret `json:"sessionKey"`
	// SigningKey signs OAuth state and CSRF tokens. At least 32 bytes.
	SigningKey Secret `json:"signingKey"`
}

// IdentityProviderConfig configures the implicit-grant authorize request
type IdentityProviderConfig struct {
	AuthorizeURL string   `json:"authorizeURL"`
	ClientID     string   `json:"clientId"`
	RedirectURI  string   `json:"redirectUri"`
	Scopes       []string `json:"scopes"`
}

// ExchangeConfig configures the entitlement and region endpoints. A zero
// Timeout means the calls are not bounded by the client.
type ExchangeConfig struct {
	EntitlementsURL string        `json:"entitlementsURL"`
	GeoURL          string        `json:"geoURL"`
	Timeout         time.Duration `json:"timeout"`
}

// APIConfig configures calls to the partitioned API
type APIConfig struct {
	BaseURL        string                         `json:"baseURL"`
	ClientVersion  string                         `json:"clientVersion"`
	ClientPlatform credentials.PlatformDescriptor `json:"clientPlatform"`
	Timeout        time.Duration                  `json:"timeout"`
}

// SessionConfig represents session management configuration
type SessionConfig struct {
	Timeout         time.Duration
	CleanupInterval time.Duration
}

// Config represents the config structure with resolved values
type Config struct {
	Version          string                 `json:"version"`
	Server           ServerConfig           `json:"server"`
	IdentityProvider IdentityProviderConfig `json:"identityProvider"`
	Exchange         ExchangeConfig         `json:"exchange"`
	API              APIConfig              `json:"api"`
	Sessions         SessionConfig          `json:"sessions"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference resolved immediately.
//
// The explicit JSON syntax is used instead of $VAR substitution so that
// shells and CI scripts never expand references before the config is read.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
