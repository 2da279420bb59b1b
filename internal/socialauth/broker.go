// Package socialauth acquires identity tokens from social identity providers.
//
// Each provider flow loads the provider script on demand, initializes the
// SDK it installs, drives the interactive sign-in, and settles exactly once
// with a token or an error. Nothing is retried: a failed attempt is restarted
// by calling the flow again, which re-initializes the SDK from scratch.
package socialauth

import (
	"time"

	"github.com/dgellow/socialsign/internal/crypto"
	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/metrics"
	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/sdk"
)

const (
	// DefaultGoogleTimeout bounds a Google attempt from initialization to settlement.
	DefaultGoogleTimeout = 60 * time.Second

	appleScope        = "name email"
	appleResponseType = "code id_token"
	appleResponseMode = "fragment"

	randomValueLength = 24
)

// GoogleSettings configures the Google flow.
type GoogleSettings struct {
	ClientID  string
	ScriptURL string
	Timeout   time.Duration
}

// AppleSettings configures the Apple flow.
type AppleSettings struct {
	ClientID    string
	RedirectURI string
	ScriptURL   string
}

// Options configures a Broker.
type Options struct {
	Scripts script.Registry
	Globals sdk.Globals
	Google  GoogleSettings
	Apple   AppleSettings
	Metrics *metrics.Metrics

	// RandomHex generates state and nonce values. Defaults to crypto.RandomHex.
	RandomHex func(n int) (string, error)
}

// Broker hands out identity tokens from Google and Apple.
type Broker struct {
	scripts   script.Registry
	globals   sdk.Globals
	google    GoogleSettings
	apple     AppleSettings
	metrics   *metrics.Metrics
	randomHex func(n int) (string, error)
}

// New creates a Broker.
func New(opts Options) *Broker {
	b := &Broker{
		scripts:   opts.Scripts,
		globals:   opts.Globals,
		google:    opts.Google,
		apple:     opts.Apple,
		metrics:   opts.Metrics,
		randomHex: opts.RandomHex,
	}
	if b.google.ScriptURL == "" {
		b.google.ScriptURL = sdk.GoogleScriptURL
	}
	if b.google.Timeout <= 0 {
		b.google.Timeout = DefaultGoogleTimeout
	}
	if b.apple.ScriptURL == "" {
		b.apple.ScriptURL = sdk.AppleScriptURL
	}
	if b.randomHex == nil {
		b.randomHex = crypto.RandomHex
	}
	return b
}

func (b *Broker) finish(provider, attemptID string, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := Outcome(err)
	b.metrics.ObserveAttempt(provider, outcome, elapsed)

	fields := map[string]any{
		"provider": provider,
		"attempt":  attemptID,
		"outcome":  outcome,
		"elapsed":  elapsed.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		log.LogWarnWithFields("socialauth", "Identity token request failed", fields)
		return
	}
	log.LogInfoWithFields("socialauth", "Identity token acquired", fields)
}
