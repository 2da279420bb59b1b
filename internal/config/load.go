package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/socialsign/internal/emailutil"
	"github.com/dgellow/socialsign/internal/log"
)

// VersionPrefix is the prefix every supported config version carries.
const VersionPrefix = "v0.0.1-DEV_EDITION"

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse processes config bytes the way Load does.
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, VersionPrefix) {
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

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	google, ok := rawConfig["google"].(map[string]any)
	if !ok {
		return nil
	}
	value, exists := google["clientSecret"]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("google.clientSecret must use environment variable reference for security")
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("google.clientSecret must use {\"$env\": \"VAR_NAME\"} format")
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Google == nil && config.Apple == nil {
		return fmt.Errorf("at least one of google or apple must be configured")
	}

	if g := config.Google; g != nil {
		if g.Timeout < 0 {
			return fmt.Errorf("google.timeout cannot be negative")
		}
		if g.ScriptURL != "" {
			if err := validateURL(g.ScriptURL); err != nil {
				return fmt.Errorf("google.scriptUrl: %w", err)
			}
		}
		if g.ClientID != "" && g.ClientSecret == "" {
			log.LogWarn("google.clientSecret is empty; the token exchange will only work for public clients")
		}
	}

	if a := config.Apple; a != nil {
		if a.RedirectURI != "" {
			if err := validateURL(a.RedirectURI); err != nil {
				return fmt.Errorf("apple.redirectUri: %w", err)
			}
		}
		if a.ScriptURL != "" {
			if err := validateURL(a.ScriptURL); err != nil {
				return fmt.Errorf("apple.scriptUrl: %w", err)
			}
		}
	}

	for _, domain := range config.AllowedDomains {
		if domain == "" || domain != emailutil.Normalize(domain) || strings.Contains(domain, "@") {
			return fmt.Errorf("allowedDomains entry %q must be a lowercase domain name", domain)
		}
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
