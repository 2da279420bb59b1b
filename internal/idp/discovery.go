package idp

import (
	"encoding/json"
	"fmt"
)

// Discovery is the subset of an OpenID discovery document the drivers use.
type Discovery struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserInfoEndpoint      string   `json:"userinfo_endpoint,omitempty"`
	JWKSURI               string   `json:"jwks_uri"`
	ResponseModes         []string `json:"response_modes_supported,omitempty"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
}

// ParseDiscovery decodes a discovery document. Only the issuer is required;
// callers decide which endpoints they need.
func ParseDiscovery(body []byte) (*Discovery, error) {
	var d Discovery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if d.Issuer == "" {
		return nil, fmt.Errorf("discovery document missing issuer")
	}
	return &d, nil
}
