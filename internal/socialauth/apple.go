package socialauth

import (
	"context"
	"fmt"
	"time"

	"github.com/dgellow/socialsign/internal/sdk"
	"github.com/google/uuid"
)

// AppleIDToken runs the Sign in with Apple flow and returns the identity token.
//
// Unlike Google, no timeout is imposed here; the provider's own sign-in
// call and ctx are the only bounds.
func (b *Broker) AppleIDToken(ctx context.Context) (string, error) {
	token, _, err := b.AppleIDTokenWithNonce(ctx)
	return token, err
}

// AppleIDTokenWithNonce is AppleIDToken that also returns the nonce sent
// with the request, for checking against the token's nonce claim.
func (b *Broker) AppleIDTokenWithNonce(ctx context.Context) (token, nonce string, err error) {
	attemptID := uuid.New().String()
	start := time.Now()
	defer func() { b.finish("apple", attemptID, start, err) }()

	if b.apple.ClientID == "" || b.apple.RedirectURI == "" {
		return "", "", fmt.Errorf("apple: %w: client id and redirect URI are required", ErrNotConfigured)
	}

	if err := b.scripts.Load(ctx, b.apple.ScriptURL, sdk.AppleScriptID); err != nil {
		return "", "", err
	}

	auth, ok := sdk.LookupApple(b.globals)
	if !ok {
		return "", "", fmt.Errorf("apple: %w: %s not found", ErrSDKUnavailable, sdk.AppleGlobal)
	}

	state, err := b.randomHex(randomValueLength)
	if err != nil {
		return "", "", fmt.Errorf("apple: generating state: %w", err)
	}
	nonce, err = b.randomHex(randomValueLength)
	if err != nil {
		return "", "", fmt.Errorf("apple: generating nonce: %w", err)
	}

	var resp *sdk.AppleSignInResponse
	err = guard("apple", func() error {
		err := auth.Init(sdk.AppleIDConfig{
			ClientID:     b.apple.ClientID,
			Scope:        appleScope,
			RedirectURI:  b.apple.RedirectURI,
			State:        state,
			Nonce:        nonce,
			UsePopup:     true,
			ResponseType: appleResponseType,
			ResponseMode: appleResponseMode,
		})
		if err != nil {
			return err
		}

		resp, err = auth.SignIn(ctx)
		return err
	})
	if err != nil {
		return "", "", err
	}

	if resp == nil || resp.Authorization.IDToken == "" {
		return "", "", fmt.Errorf("apple: %w", ErrCancelled)
	}
	return resp.Authorization.IDToken, nonce, nil
}
