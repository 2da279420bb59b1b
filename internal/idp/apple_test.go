package idp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBool(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`"true"`, true, false},
		{`"false"`, false, false},
		{`"yes"`, false, true},
		{`1`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b flexBool
			err := json.Unmarshal([]byte(tt.input), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bool(b))
		})
	}
}

func TestAppleVerifier_StringEmailVerified(t *testing.T) {
	signer := newTestSigner(t)
	v, err := NewAppleVerifier(context.Background(), "com.example.food.web", nil, signer.keySet())
	require.NoError(t, err)
	assert.Equal(t, "apple", v.Provider())

	claims := baseClaims(AppleIssuer, "com.example.food.web")
	claims["email"] = "x7d2@privaterelay.appleid.com"
	claims["email_verified"] = "true"
	claims["is_private_email"] = "true"
	claims["nonce"] = "0123456789abcdef01234567"

	identity, err := v.VerifyIDToken(context.Background(), signer.sign(t, claims))

	require.NoError(t, err)
	assert.Equal(t, "apple", identity.ProviderType)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "privaterelay.appleid.com", identity.Domain)
	assert.Empty(t, identity.Name)
	assert.Equal(t, "0123456789abcdef01234567", identity.Nonce)
	assert.NoError(t, identity.CheckNonce("0123456789abcdef01234567"))
}

func TestIdentity_CheckNonce(t *testing.T) {
	identity := &Identity{Nonce: "abc123"}

	assert.NoError(t, identity.CheckNonce("abc123"))
	assert.ErrorIs(t, identity.CheckNonce("abc124"), ErrNonceMismatch)
	assert.ErrorIs(t, identity.CheckNonce(""), ErrNonceMismatch)
	assert.ErrorIs(t, (&Identity{}).CheckNonce("abc123"), ErrNonceMismatch)
}
