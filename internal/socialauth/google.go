package socialauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/sdk"
	"github.com/dgellow/socialsign/internal/settle"
	"github.com/google/uuid"
)

// GoogleIDToken runs the Google sign-in flow and returns the identity token.
//
// The attempt is bounded by the configured timeout, counted from SDK
// initialization. On expiry the in-flight prompt is cancelled on a
// best-effort basis: the provider may keep working after this call has
// already returned ErrTimeout.
func (b *Broker) GoogleIDToken(ctx context.Context) (token string, err error) {
	attemptID := uuid.New().String()
	start := time.Now()
	defer func() { b.finish("google", attemptID, start, err) }()

	if b.google.ClientID == "" {
		return "", fmt.Errorf("google: %w: client id is not set", ErrNotConfigured)
	}

	if err := b.scripts.Load(ctx, b.google.ScriptURL, sdk.GoogleScriptID); err != nil {
		return "", err
	}

	gid, ok := sdk.LookupGoogle(b.globals)
	if !ok {
		return "", fmt.Errorf("google: %w: %s not found", ErrSDKUnavailable, sdk.GoogleGlobal)
	}

	attempt := settle.New[string]()
	cancelPrompt := func() {
		if err := gid.Cancel(); err != nil {
			log.LogDebugWithFields("socialauth", "Prompt cancellation failed", map[string]any{
				"attempt": attemptID,
				"error":   err.Error(),
			})
		}
	}

	wireErr := guard("google", func() error {
		attempt.StartTimer(b.google.Timeout, cancelPrompt)

		err := gid.Initialize(sdk.GoogleIDConfig{
			ClientID:           b.google.ClientID,
			UXMode:             sdk.UXModePopup,
			AutoSelect:         false,
			CancelOnTapOutside: true,
			Callback: func(resp sdk.CredentialResponse) {
				if strings.TrimSpace(resp.Credential) == "" {
					attempt.Reject(fmt.Errorf("google: %w", ErrCancelled))
					return
				}
				attempt.Resolve(resp.Credential)
			},
		})
		if err != nil {
			return err
		}

		return gid.Prompt(func(n sdk.PromptNotification) {
			if attempt.Settled() {
				return
			}
			if n.IsNotDisplayed() || n.IsSkippedMoment() {
				log.LogDebugWithFields("socialauth", "Prompt not shown", map[string]any{
					"attempt":       attemptID,
					"not_displayed": n.IsNotDisplayed(),
					"skipped":       n.IsSkippedMoment(),
					"reason":        n.Reason,
				})
				attempt.Reject(fmt.Errorf("google: %w (%s)", ErrUnavailable, n.Reason))
			}
		})
	})
	if wireErr != nil {
		attempt.Reject(wireErr)
	}

	token, err = attempt.Wait(ctx)
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, ErrTimeout):
		return "", fmt.Errorf("google: %w after %s", ErrTimeout, b.google.Timeout)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		cancelPrompt()
		return "", fmt.Errorf("google: %w", err)
	default:
		return "", err
	}
}
