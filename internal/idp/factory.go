package idp

import (
	"context"
	"fmt"
)

// NewVerifier creates a Verifier for the named provider using
// discovery-based key sets.
func NewVerifier(ctx context.Context, provider, clientID string, allowedDomains []string) (Verifier, error) {
	switch provider {
	case "google":
		return NewGoogleVerifier(ctx, clientID, allowedDomains, nil)
	case "apple":
		return NewAppleVerifier(ctx, clientID, allowedDomains, nil)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", provider)
	}
}
