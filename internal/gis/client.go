// Package gis is a Google Identity Services client for processes that
// sign users in through the system browser.
//
// It implements sdk.GoogleID: Prompt opens Google's consent page with a
// loopback redirect, exchanges the returned code (with PKCE) and hands the
// identity token to the callback given to Initialize.
package gis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dgellow/socialsign/internal/browser"
	"github.com/dgellow/socialsign/internal/crypto"
	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/loopback"
	"github.com/dgellow/socialsign/internal/sdk"
	"golang.org/x/oauth2"
)

const callbackPath = "/callback"

// ErrNoPrompt is returned by Cancel when no prompt is in flight.
var ErrNoPrompt = errors.New("gis: no prompt in flight")

// Options configures a Client.
type Options struct {
	// ClientSecret is required by Google for installed-app clients.
	// It is not confidential for such clients.
	ClientSecret string

	// ListenAddr is the loopback address for the redirect. Defaults to 127.0.0.1:0.
	ListenAddr string

	// Opener presents the consent page. Defaults to the system browser.
	Opener browser.Opener

	// HTTPClient is used for the code exchange.
	HTTPClient *http.Client

	Scopes []string
}

// Client implements sdk.GoogleID.
type Client struct {
	endpoint oauth2.Endpoint
	opts     Options

	mu     sync.Mutex
	cfg    *sdk.GoogleIDConfig
	prompt *prompt
}

// New creates a Client for the given OAuth endpoints.
func New(endpoint oauth2.Endpoint, opts Options) *Client {
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}
	if opts.Opener == nil {
		opts.Opener = browser.System{}
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{"openid", "email", "profile"}
	}
	return &Client{endpoint: endpoint, opts: opts}
}

// Initialize stores the configuration used by later prompts.
func (c *Client) Initialize(cfg sdk.GoogleIDConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("gis: client_id is required")
	}
	if cfg.UXMode != "" && cfg.UXMode != sdk.UXModePopup {
		return fmt.Errorf("gis: unsupported ux_mode %q", cfg.UXMode)
	}
	if cfg.Callback == nil {
		return fmt.Errorf("gis: callback is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = &cfg
	return nil
}

// Prompt opens the consent page and returns. The outcome is reported
// through the Initialize callback, or through listener when the page
// cannot be shown or the token cannot be issued.
func (c *Client) Prompt(listener func(sdk.PromptNotification)) error {
	if listener == nil {
		listener = func(sdk.PromptNotification) {}
	}

	c.mu.Lock()
	if c.cfg == nil {
		c.mu.Unlock()
		return fmt.Errorf("gis: Prompt called before Initialize")
	}
	cfg := *c.cfg
	previous := c.prompt
	c.prompt = nil
	c.mu.Unlock()

	// Only one prompt is shown at a time.
	if previous != nil {
		previous.finish(func() {
			previous.listener(sdk.PromptNotification{Skipped: true, Reason: sdk.ReasonAutoCancel})
		})
	}

	p, err := c.newPrompt(cfg, listener)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, p.handleCallback)

	srv, err := loopback.Listen(c.opts.ListenAddr, mux)
	if err != nil {
		log.LogWarnWithFields("gis", "Loopback listener unavailable", map[string]any{
			"addr":  c.opts.ListenAddr,
			"error": err.Error(),
		})
		listener(sdk.PromptNotification{NotDisplayed: true, Reason: sdk.ReasonUnknown})
		return nil
	}
	p.server = srv
	p.oauth.RedirectURL = srv.URL(callbackPath)

	authOpts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(p.verifier)}
	if !cfg.AutoSelect {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	authURL := p.oauth.AuthCodeURL(p.state, authOpts...)

	c.mu.Lock()
	c.prompt = p
	c.mu.Unlock()

	srv.Start()

	if err := c.opts.Opener.Open(authURL); err != nil {
		log.LogWarnWithFields("gis", "Could not open consent page", map[string]any{
			"error": err.Error(),
		})
		p.finish(func() {
			listener(sdk.PromptNotification{NotDisplayed: true, Reason: sdk.ReasonBrowserNotSupported})
		})
		return nil
	}

	log.LogDebugWithFields("gis", "Consent page opened", map[string]any{
		"redirect_uri": p.oauth.RedirectURL,
	})
	listener(sdk.PromptNotification{Displayed: true})
	return nil
}

// Cancel dismisses the in-flight prompt. The loopback server stops and the
// prompt listener receives a skipped moment.
func (c *Client) Cancel() error {
	c.mu.Lock()
	p := c.prompt
	c.prompt = nil
	c.mu.Unlock()

	if p == nil {
		return ErrNoPrompt
	}
	if !p.finish(func() {
		p.listener(sdk.PromptNotification{Skipped: true, Reason: sdk.ReasonAutoCancel})
	}) {
		return ErrNoPrompt
	}
	return nil
}

func (c *Client) newPrompt(cfg sdk.GoogleIDConfig, listener func(sdk.PromptNotification)) (*prompt, error) {
	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("gis: generating state: %w", err)
	}
	return &prompt{
		client:   c,
		state:    state,
		verifier: oauth2.GenerateVerifier(),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: c.opts.ClientSecret,
			Scopes:       c.opts.Scopes,
			Endpoint:     c.endpoint,
		},
		callback:   cfg.Callback,
		listener:   listener,
		httpClient: c.opts.HTTPClient,
	}, nil
}

func (c *Client) release(p *prompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompt == p {
		c.prompt = nil
	}
}

// prompt is one consent-page round trip.
type prompt struct {
	client     *Client
	state      string
	verifier   string
	oauth      oauth2.Config
	callback   func(sdk.CredentialResponse)
	listener   func(sdk.PromptNotification)
	httpClient *http.Client
	server     *loopback.Server

	once sync.Once
}

// finish ends the prompt exactly once: it stops the loopback server and
// runs notify. It reports whether this call ended the prompt.
func (p *prompt) finish(notify func()) bool {
	finished := false
	p.once.Do(func() {
		finished = true
		p.client.release(p)
		if p.server != nil {
			srv := p.server
			// Shutdown waits for in-flight handlers, which may be the caller.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(ctx)
			}()
		}
		notify()
	})
	return finished
}
