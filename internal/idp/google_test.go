package idp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleVerifier_Provider(t *testing.T) {
	signer := newTestSigner(t)
	v, err := NewGoogleVerifier(context.Background(), "client-id", nil, signer.keySet())
	require.NoError(t, err)
	assert.Equal(t, "google", v.Provider())
}

func TestGoogleVerifier_VerifyIDToken(t *testing.T) {
	signer := newTestSigner(t)

	tests := []struct {
		name           string
		claims         map[string]any
		allowedDomains []string
		wantErr        bool
		errContains    string
		expectedDomain string
	}{
		{
			name: "valid_user_with_hosted_domain",
			claims: map[string]any{
				"email":          "user@company.com",
				"email_verified": true,
				"name":           "Test User",
				"hd":             "company.com",
			},
			allowedDomains: []string{"company.com"},
			expectedDomain: "company.com",
		},
		{
			name: "valid_user_without_hosted_domain_derives_from_email",
			claims: map[string]any{
				"email":          "user@gmail.com",
				"email_verified": true,
			},
			expectedDomain: "gmail.com",
		},
		{
			name: "domain_not_allowed",
			claims: map[string]any{
				"email": "user@other.com",
				"hd":    "other.com",
			},
			allowedDomains: []string{"company.com"},
			wantErr:        true,
			errContains:    "domain 'other.com' is not allowed",
		},
		{
			name:        "wrong_issuer",
			claims:      map[string]any{"iss": "https://evil.example.com"},
			wantErr:     true,
			errContains: "failed to verify id token",
		},
		{
			name:        "wrong_audience",
			claims:      map[string]any{"aud": "someone-else"},
			wantErr:     true,
			errContains: "failed to verify id token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewGoogleVerifier(context.Background(), "client-id", tt.allowedDomains, signer.keySet())
			require.NoError(t, err)

			claims := baseClaims(GoogleIssuer, "client-id")
			for k, val := range tt.claims {
				claims[k] = val
			}
			raw := signer.sign(t, claims)

			identity, err := v.VerifyIDToken(context.Background(), raw)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "google", identity.ProviderType)
			assert.Equal(t, "000123.abcdef", identity.Subject)
			assert.Equal(t, tt.expectedDomain, identity.Domain)
			assert.Equal(t, tt.claims["email"], identity.Email)
		})
	}
}

func TestGoogleVerifier_ForeignKeyRejected(t *testing.T) {
	trusted := newTestSigner(t)
	attacker := newTestSigner(t)

	v, err := NewGoogleVerifier(context.Background(), "client-id", nil, trusted.keySet())
	require.NoError(t, err)

	raw := attacker.sign(t, baseClaims(GoogleIssuer, "client-id"))
	_, err = v.VerifyIDToken(context.Background(), raw)
	require.Error(t, err)
}
