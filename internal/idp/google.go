package idp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	emailutil "github.com/dgellow/socialsign/internal/emailutil"
)

// GoogleIssuer is the iss claim of Google identity tokens.
const GoogleIssuer = "https://accounts.google.com"

// googleClaims carries Google's `hd` hosted-domain claim.
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	HostedDomain  string `json:"hd"`
}

// NewGoogleVerifier creates a verifier for Google identity tokens.
// Workspace accounts are matched on their hosted domain rather than the
// email domain.
func NewGoogleVerifier(ctx context.Context, clientID string, allowedDomains []string, keySet oidc.KeySet) (*OIDCVerifier, error) {
	v, err := NewOIDCVerifier(ctx, OIDCConfig{
		ProviderType:   "google",
		Issuer:         GoogleIssuer,
		ClientID:       clientID,
		AllowedDomains: allowedDomains,
		KeySet:         keySet,
	})
	if err != nil {
		return nil, err
	}
	v.identity = googleIdentity
	return v, nil
}

func googleIdentity(token *oidc.IDToken) (*Identity, error) {
	var claims googleClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}

	// Use Google's hosted domain if available, otherwise derive from email
	domain := claims.HostedDomain
	if domain == "" {
		domain = emailutil.ExtractDomain(claims.Email)
	}

	return &Identity{
		ProviderType:  "google",
		Subject:       token.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Domain:        domain,
	}, nil
}
