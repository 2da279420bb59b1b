package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

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

// GoogleConfig configures the Google Identity Services flow.
type GoogleConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	// ListenAddr is the loopback address receiving the redirect.
	ListenAddr string        `json:"listenAddr,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	ScriptURL  string        `json:"scriptUrl,omitempty"`
}

// AppleConfig configures the Sign in with Apple flow.
type AppleConfig struct {
	ClientID    string `json:"clientId"`
	RedirectURI string `json:"redirectUri"`
	// CallbackAddr is where the callback handler listens. The redirect URI
	// must reach it, usually through a tunnel or reverse proxy.
	CallbackAddr string `json:"callbackAddr,omitempty"`
	ScriptURL    string `json:"scriptUrl,omitempty"`
}

// Config represents the config structure with resolved values.
//
// String values may be {"$env": "VAR_NAME"} references, resolved at load
// time. The explicit JSON syntax avoids accidental shell expansion when
// config files pass through startup scripts.
type Config struct {
	Version        string        `json:"version"`
	Google         *GoogleConfig `json:"google,omitempty"`
	Apple          *AppleConfig  `json:"apple,omitempty"`
	Verify         bool          `json:"verify,omitempty"`
	AllowedDomains []string      `json:"allowedDomains,omitempty"`
}

// RawConfigValue represents a value that could be a string or env ref.
// This is only used during parsing, not in the final config
type RawConfigValue struct {
	value string
}

// Value returns the resolved string.
func (v *RawConfigValue) Value() string {
	return v.value
}

// ParseConfigValue parses a JSON value that could be a string or reference object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}

// parseOptional resolves raw into dst when present.
func parseOptional(raw json.RawMessage, field string, dst *string) error {
	if raw == nil {
		return nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	*dst = parsed.value
	return nil
}
