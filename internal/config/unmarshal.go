package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for GoogleConfig
func (g *GoogleConfig) UnmarshalJSON(data []byte) error {
	type rawGoogle struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		ListenAddr   json.RawMessage `json:"listenAddr"`
		Timeout      string          `json:"timeout"`
		ScriptURL    json.RawMessage `json:"scriptUrl"`
	}

	var raw rawGoogle
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := parseOptional(raw.ClientID, "clientId", &g.ClientID); err != nil {
		return err
	}
	var secret string
	if err := parseOptional(raw.ClientSecret, "clientSecret", &secret); err != nil {
		return err
	}
	g.ClientSecret = Secret(secret)
	if err := parseOptional(raw.ListenAddr, "listenAddr", &g.ListenAddr); err != nil {
		return err
	}
	if err := parseOptional(raw.ScriptURL, "scriptUrl", &g.ScriptURL); err != nil {
		return err
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		g.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AppleConfig
func (a *AppleConfig) UnmarshalJSON(data []byte) error {
	type rawApple struct {
		ClientID     json.RawMessage `json:"clientId"`
		RedirectURI  json.RawMessage `json:"redirectUri"`
		CallbackAddr json.RawMessage `json:"callbackAddr"`
		ScriptURL    json.RawMessage `json:"scriptUrl"`
	}

	var raw rawApple
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		raw  json.RawMessage
		name string
		dst  *string
	}{
		{raw.ClientID, "clientId", &a.ClientID},
		{raw.RedirectURI, "redirectUri", &a.RedirectURI},
		{raw.CallbackAddr, "callbackAddr", &a.CallbackAddr},
		{raw.ScriptURL, "scriptUrl", &a.ScriptURL},
	}
	for _, f := range fields {
		if err := parseOptional(f.raw, f.name, f.dst); err != nil {
			return err
		}
	}
	return nil
}
