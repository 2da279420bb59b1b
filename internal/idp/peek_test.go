package idp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeek(t *testing.T) {
	signer := newTestSigner(t)
	claims := baseClaims(AppleIssuer, "com.example.food.web")
	claims["email"] = "user@example.com"
	claims["nonce"] = "abc123"

	c, err := Peek(signer.sign(t, claims))

	require.NoError(t, err)
	assert.Equal(t, AppleIssuer, c.Issuer)
	assert.Equal(t, "000123.abcdef", c.Subject)
	assert.Equal(t, []string{"com.example.food.web"}, c.Audience)
	assert.Equal(t, "user@example.com", c.Email)
	assert.Equal(t, "abc123", c.Nonce)
	assert.WithinDuration(t, time.Now().Add(time.Hour), c.ExpiresAt, 5*time.Second)
}

func TestPeek_Malformed(t *testing.T) {
	_, err := Peek("not-a-jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse id token")
}
