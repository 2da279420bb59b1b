package idp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
)

// ErrNonceMismatch is returned when a token was not issued for the
// request that carried the expected nonce.
var ErrNonceMismatch = errors.New("id token nonce does not match the request")

// Identity is the verified subject behind an identity token.
type Identity struct {
	ProviderType  string `json:"provider_type"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Domain        string `json:"domain"`
	// Nonce is the token's nonce claim, for CheckNonce.
	Nonce string `json:"-"`
}

// CheckNonce compares the identity's nonce claim with the nonce sent on
// the authorization request.
func (i *Identity) CheckNonce(expected string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(i.Nonce), []byte(expected)) != 1 {
		return ErrNonceMismatch
	}
	return nil
}

// Verifier validates identity tokens issued by one provider.
type Verifier interface {
	// Provider returns the provider type identifier ("google", "apple").
	Provider() string

	// VerifyIDToken checks signature, issuer, audience and expiry and
	// returns the identity the token asserts.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error)
}

// ValidateDomain checks if the domain is in the allowed list.
// Returns nil if allowedDomains is empty (no restriction) or domain is allowed.
func ValidateDomain(domain string, allowedDomains []string) error {
	if len(allowedDomains) == 0 {
		return nil
	}
	if !slices.Contains(allowedDomains, domain) {
		return fmt.Errorf("domain '%s' is not allowed. Contact your administrator", domain)
	}
	return nil
}
