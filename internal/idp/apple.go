package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	emailutil "github.com/dgellow/socialsign/internal/emailutil"
)

// AppleIssuer is the iss claim of Apple identity tokens.
const AppleIssuer = "https://appleid.apple.com"

// flexBool accepts true, "true", false and "false".
// Apple has sent email_verified in both forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected bool or string: %s", data)
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean string %q", s)
	}
	*b = flexBool(parsed)
	return nil
}

type appleClaims struct {
	Email          string   `json:"email"`
	EmailVerified  flexBool `json:"email_verified"`
	IsPrivateEmail flexBool `json:"is_private_email"`
}

// NewAppleVerifier creates a verifier for Sign in with Apple identity tokens.
// Apple tokens carry no name; it is only delivered once in the
// authorization response.
func NewAppleVerifier(ctx context.Context, clientID string, allowedDomains []string, keySet oidc.KeySet) (*OIDCVerifier, error) {
	v, err := NewOIDCVerifier(ctx, OIDCConfig{
		ProviderType:   "apple",
		Issuer:         AppleIssuer,
		ClientID:       clientID,
		AllowedDomains: allowedDomains,
		KeySet:         keySet,
	})
	if err != nil {
		return nil, err
	}
	v.identity = appleIdentity
	return v, nil
}

func appleIdentity(token *oidc.IDToken) (*Identity, error) {
	var claims appleClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return &Identity{
		ProviderType:  "apple",
		Subject:       token.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Domain:        emailutil.ExtractDomain(claims.Email),
	}, nil
}
