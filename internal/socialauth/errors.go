package socialauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/settle"
)

var (
	// ErrNotConfigured means a required client id or redirect URI is missing.
	ErrNotConfigured = errors.New("sign-in is not configured")

	// ErrSDKUnavailable means the provider script loaded without installing its SDK.
	ErrSDKUnavailable = errors.New("identity provider SDK is unavailable")

	// ErrCancelled means the provider returned no usable token.
	ErrCancelled = errors.New("sign-in was cancelled")

	// ErrUnavailable means the provider cannot show its UI in this context.
	ErrUnavailable = errors.New("sign-in is unavailable in this browser context")

	// ErrTimeout means no settlement happened within the sign-in window.
	ErrTimeout = settle.ErrTimeout
)

// Outcome classifies the result of a token request for metrics and logs.
func Outcome(err error) string {
	var loadErr *script.LoadError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &loadErr):
		return "script_load"
	case errors.Is(err, ErrSDKUnavailable):
		return "sdk_unavailable"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "error"
	}
}

// guard runs SDK wiring code, converting returned errors and panics
// into a single failure for provider.
func guard(provider string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%s sign-in failed: %w", provider, e)
				return
			}
			err = fmt.Errorf("%s sign-in failed", provider)
		}
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s sign-in failed: %w", provider, err)
	}
	return nil
}
