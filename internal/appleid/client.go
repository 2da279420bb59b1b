// Package appleid is a Sign in with Apple client for processes that sign
// users in through the system browser.
//
// Apple only redirects to registered HTTPS URIs, so the authorization
// response is delivered to CallbackHandler, which the host mounts at the
// redirect URI (directly or behind a tunnel or reverse proxy).
package appleid

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/dgellow/socialsign/internal/browser"
	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/sdk"
)

// DefaultAuthorizeURL is Apple's authorization endpoint.
const DefaultAuthorizeURL = "https://appleid.apple.com/auth/authorize"

// CancelledCode is the error Apple reports when the user closes the sheet.
const CancelledCode = "user_cancelled_authorize"

// AuthorizationError is an error response from Apple's authorization endpoint.
type AuthorizationError struct {
	Code string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("apple authorization failed: %s", e.Code)
}

// Options configures a Client.
type Options struct {
	// Opener presents the authorization page. Defaults to the system browser.
	Opener browser.Opener
}

type result struct {
	resp *sdk.AppleSignInResponse
	err  error
}

// Client implements sdk.AppleIDAuth.
type Client struct {
	authorizeURL string
	opener       browser.Opener

	mu      sync.Mutex
	cfg     *sdk.AppleIDConfig
	pending map[string]chan result
}

// New creates a Client for the given authorization endpoint.
func New(authorizeURL string, opts Options) *Client {
	if authorizeURL == "" {
		authorizeURL = DefaultAuthorizeURL
	}
	if opts.Opener == nil {
		opts.Opener = browser.System{}
	}
	return &Client{
		authorizeURL: authorizeURL,
		opener:       opts.Opener,
		pending:      make(map[string]chan result),
	}
}

// Init stores the configuration for the next SignIn.
func (c *Client) Init(cfg sdk.AppleIDConfig) error {
	switch {
	case cfg.ClientID == "":
		return fmt.Errorf("appleid: clientId is required")
	case cfg.RedirectURI == "":
		return fmt.Errorf("appleid: redirectURI is required")
	case cfg.State == "":
		return fmt.Errorf("appleid: state is required")
	case cfg.Nonce == "":
		return fmt.Errorf("appleid: nonce is required")
	case !strings.Contains(cfg.ResponseType, "code"):
		return fmt.Errorf("appleid: responseType must include code, got %q", cfg.ResponseType)
	}
	switch cfg.ResponseMode {
	case "", "query", "fragment", "form_post":
	default:
		return fmt.Errorf("appleid: unsupported responseMode %q", cfg.ResponseMode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = &cfg
	return nil
}

// AuthorizationURL builds the authorize URL for cfg.
func (c *Client) AuthorizationURL(cfg sdk.AppleIDConfig) (string, error) {
	c.mu.Lock()
	endpoint := c.authorizeURL
	c.mu.Unlock()

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("appleid: invalid authorize URL: %w", err)
	}

	q := u.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("response_type", cfg.ResponseType)
	if cfg.ResponseMode != "" {
		q.Set("response_mode", cfg.ResponseMode)
	}
	if cfg.Scope != "" {
		q.Set("scope", cfg.Scope)
	}
	q.Set("state", cfg.State)
	q.Set("nonce", cfg.Nonce)
	// Apple rejects '+' as the scope separator.
	u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	return u.String(), nil
}

// SignIn opens the authorization page and waits for the response to reach
// CallbackHandler, or for ctx to end. Apple imposes no deadline of its own.
func (c *Client) SignIn(ctx context.Context) (*sdk.AppleSignInResponse, error) {
	c.mu.Lock()
	if c.cfg == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("appleid: SignIn called before Init")
	}
	cfg := *c.cfg
	ch := make(chan result, 1)
	c.pending[cfg.State] = ch
	c.mu.Unlock()

	defer c.forget(cfg.State)

	authURL, err := c.AuthorizationURL(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.opener.Open(authURL); err != nil {
		return nil, fmt.Errorf("appleid: opening authorization page: %w", err)
	}

	log.LogDebugWithFields("appleid", "Authorization page opened", map[string]any{
		"redirect_uri":  cfg.RedirectURI,
		"response_mode": cfg.ResponseMode,
	})

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) forget(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, state)
}

// deliver hands res to the SignIn waiting on state. It reports whether
// one was waiting.
func (c *Client) deliver(state string, res result) bool {
	c.mu.Lock()
	ch, ok := c.pending[state]
	if ok {
		delete(c.pending, state)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- res
	return true
}
