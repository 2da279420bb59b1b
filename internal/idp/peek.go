package idp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is an unverified view of an identity token.
type Claims struct {
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub"`
	Audience  []string  `json:"aud"`
	Email     string    `json:"email,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

type peekClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Nonce string `json:"nonce"`
}

// Peek decodes the claims of rawIDToken without checking its signature.
// Use it for display and diagnostics only; trust requires a Verifier.
func Peek(rawIDToken string) (*Claims, error) {
	var pc peekClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	c := &Claims{
		Issuer:   pc.Issuer,
		Subject:  pc.Subject,
		Audience: pc.Audience,
		Email:    pc.Email,
		Nonce:    pc.Nonce,
	}
	if pc.ExpiresAt != nil {
		c.ExpiresAt = pc.ExpiresAt.Time
	}
	return c, nil
}
