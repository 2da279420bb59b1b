package idp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	emailutil "github.com/dgellow/socialsign/internal/emailutil"
)

// OIDCConfig configures an OIDC token verifier.
type OIDCConfig struct {
	// ProviderType identifies this provider (e.g., "google", "apple").
	ProviderType string

	// Issuer is the expected iss claim and the discovery base URL.
	Issuer string

	// ClientID is the expected audience.
	ClientID string

	// AllowedDomains restricts the email domain; empty allows all.
	AllowedDomains []string

	// KeySet overrides JWKS discovery. Used for pinned keys and tests.
	KeySet oidc.KeySet
}

// OIDCVerifier verifies ID tokens with go-oidc.
type OIDCVerifier struct {
	providerType   string
	verifier       *oidc.IDTokenVerifier
	allowedDomains []string
	identity       func(*oidc.IDToken) (*Identity, error)
}

// idTokenClaims are the standard claims read from a verified token.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewOIDCVerifier creates a verifier. Without a KeySet the issuer's
// discovery document and JWKS are fetched; keys rotate automatically.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("clientId is required")
	}

	oidcConfig := &oidc.Config{ClientID: cfg.ClientID}

	var verifier *oidc.IDTokenVerifier
	if cfg.KeySet != nil {
		verifier = oidc.NewVerifier(cfg.Issuer, cfg.KeySet, oidcConfig)
	} else {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch OIDC discovery: %w", err)
		}
		verifier = provider.Verifier(oidcConfig)
	}

	providerType := cfg.ProviderType
	if providerType == "" {
		providerType = "oidc"
	}

	v := &OIDCVerifier{
		providerType:   providerType,
		verifier:       verifier,
		allowedDomains: cfg.AllowedDomains,
	}
	v.identity = v.standardIdentity
	return v, nil
}

// Provider returns the provider type.
func (v *OIDCVerifier) Provider() string {
	return v.providerType
}

// VerifyIDToken verifies rawIDToken and maps its claims to an Identity.
func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	identity, err := v.identity(token)
	if err != nil {
		return nil, err
	}
	identity.Nonce = token.Nonce

	if err := ValidateDomain(identity.Domain, v.allowedDomains); err != nil {
		return nil, err
	}
	return identity, nil
}

func (v *OIDCVerifier) standardIdentity(token *oidc.IDToken) (*Identity, error) {
	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return &Identity{
		ProviderType:  v.providerType,
		Subject:       token.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Domain:        emailutil.ExtractDomain(claims.Email),
	}, nil
}
