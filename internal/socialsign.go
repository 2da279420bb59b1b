package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/dgellow/socialsign/internal/appleid"
	"github.com/dgellow/socialsign/internal/browser"
	"github.com/dgellow/socialsign/internal/config"
	"github.com/dgellow/socialsign/internal/gis"
	"github.com/dgellow/socialsign/internal/idp"
	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/loopback"
	"github.com/dgellow/socialsign/internal/metrics"
	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/sdk"
	"github.com/dgellow/socialsign/internal/socialauth"
	"github.com/prometheus/client_golang/prometheus"
)

// Provider names accepted by SocialSign.
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// VerifierFactory builds an identity token verifier for a provider.
type VerifierFactory func(ctx context.Context, provider, clientID string, allowedDomains []string) (idp.Verifier, error)

// Options holds the collaborators SocialSign would otherwise create itself.
type Options struct {
	// Registerer receives the metrics. Defaults to a private registry.
	Registerer prometheus.Registerer
	// Opener presents sign-in pages. Defaults to the system browser,
	// falling back to printing the URL on stderr.
	Opener      browser.Opener
	Fetcher     script.Fetcher
	HTTPClient  *http.Client
	NewVerifier VerifierFactory
}

// Result is the outcome of a successful sign-in.
type Result struct {
	Provider string        `json:"provider"`
	IDToken  string        `json:"id_token"`
	Identity *idp.Identity `json:"identity,omitempty"`
}

// SocialSign represents the complete token broker application
type SocialSign struct {
	config      config.Config
	broker      *socialauth.Broker
	document    *script.Document
	metrics     *metrics.Metrics
	callback    *loopback.Server
	newVerifier VerifierFactory

	mu        sync.Mutex
	verifiers map[string]idp.Verifier
}

// NewSocialSign creates the application with all dependencies built
func NewSocialSign(ctx context.Context, cfg config.Config, opts Options) (*SocialSign, error) {
	log.LogInfoWithFields("socialsign", "Building token broker", map[string]any{
		"google": cfg.Google != nil,
		"apple":  cfg.Apple != nil,
		"verify": cfg.Verify,
	})

	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Opener == nil {
		opts.Opener = browser.Fallback{browser.System{}, browser.Print{W: os.Stderr}}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = script.NewHTTPFetcher()
	}
	if opts.NewVerifier == nil {
		opts.NewVerifier = idp.NewVerifier
	}

	m := metrics.New(opts.Registerer)
	doc := script.NewDocument()
	loader := script.NewLoader(doc, opts.Fetcher, script.WithMetrics(m))

	s := &SocialSign{
		config:      cfg,
		document:    doc,
		metrics:     m,
		newVerifier: opts.NewVerifier,
		verifiers:   make(map[string]idp.Verifier),
	}

	brokerOpts := socialauth.Options{
		Scripts: loader,
		Globals: doc,
		Metrics: m,
	}

	if g := cfg.Google; g != nil {
		doc.RegisterInstaller(sdk.GoogleScriptID, gis.Installer(gis.Options{
			ClientSecret: string(g.ClientSecret),
			ListenAddr:   g.ListenAddr,
			Opener:       opts.Opener,
			HTTPClient:   opts.HTTPClient,
		}))
		brokerOpts.Google = socialauth.GoogleSettings{
			ClientID:  g.ClientID,
			ScriptURL: g.ScriptURL,
			Timeout:   g.Timeout,
		}
	}

	if a := cfg.Apple; a != nil {
		client := appleid.New("", appleid.Options{Opener: opts.Opener})
		doc.RegisterInstaller(sdk.AppleScriptID, appleid.Installer(client))
		brokerOpts.Apple = socialauth.AppleSettings{
			ClientID:    a.ClientID,
			RedirectURI: a.RedirectURI,
			ScriptURL:   a.ScriptURL,
		}

		if a.CallbackAddr != "" {
			srv, err := startAppleCallback(a, client)
			if err != nil {
				return nil, err
			}
			s.callback = srv
		} else {
			log.LogWarnWithFields("socialsign", "No apple.callbackAddr configured; the redirect URI must be served elsewhere", map[string]any{
				"redirect_uri": a.RedirectURI,
			})
		}
	}

	s.broker = socialauth.New(brokerOpts)
	return s, nil
}

func startAppleCallback(cfg *config.AppleConfig, client *appleid.Client) (*loopback.Server, error) {
	path := "/"
	if cfg.RedirectURI != "" {
		u, err := url.Parse(cfg.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("invalid apple redirect URI: %w", err)
		}
		if u.Path != "" {
			path = u.Path
		}
	}

	mux := http.NewServeMux()
	mux.Handle(path, client.CallbackHandler())

	srv, err := loopback.Listen(cfg.CallbackAddr, mux)
	if err != nil {
		return nil, fmt.Errorf("failed to start apple callback server: %w", err)
	}
	srv.Start()

	log.LogInfoWithFields("socialsign", "Apple callback server listening", map[string]any{
		"addr": srv.Addr(),
		"path": path,
	})
	return srv, nil
}

// Broker exposes the underlying token broker.
func (s *SocialSign) Broker() *socialauth.Broker {
	return s.broker
}

// Metrics exposes the broker metrics.
func (s *SocialSign) Metrics() *metrics.Metrics {
	return s.metrics
}

// IDToken runs the named provider's flow.
func (s *SocialSign) IDToken(ctx context.Context, provider string) (string, error) {
	switch provider {
	case ProviderGoogle:
		return s.broker.GoogleIDToken(ctx)
	case ProviderApple:
		return s.broker.AppleIDToken(ctx)
	default:
		return "", fmt.Errorf("unknown provider %q (want %s or %s)", provider, ProviderGoogle, ProviderApple)
	}
}

// SignIn acquires a token and, when verification is enabled, checks it
// and resolves the identity it asserts. Apple tokens must also carry the
// nonce sent with the request.
func (s *SocialSign) SignIn(ctx context.Context, provider string) (*Result, error) {
	var token, nonce string
	var err error
	if provider == ProviderApple {
		token, nonce, err = s.broker.AppleIDTokenWithNonce(ctx)
	} else {
		token, err = s.IDToken(ctx, provider)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Provider: provider, IDToken: token}
	if claims, err := idp.Peek(token); err == nil {
		log.LogDebugWithFields("socialsign", "Token issued", map[string]any{
			"provider":   provider,
			"issuer":     claims.Issuer,
			"expires_at": claims.ExpiresAt,
		})
	}
	if !s.config.Verify {
		return result, nil
	}

	identity, err := s.Verify(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	if nonce != "" {
		if err := identity.CheckNonce(nonce); err != nil {
			return nil, fmt.Errorf("%s: %w", provider, err)
		}
	}
	result.Identity = identity
	return result, nil
}

// Verify checks rawIDToken against the provider's published keys.
func (s *SocialSign) Verify(ctx context.Context, provider, rawIDToken string) (*idp.Identity, error) {
	v, err := s.verifier(ctx, provider)
	if err != nil {
		return nil, err
	}

	identity, err := v.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: token verification failed: %w", provider, err)
	}

	log.LogInfoWithFields("socialsign", "Identity verified", map[string]any{
		"provider": provider,
		"domain":   identity.Domain,
	})
	return identity, nil
}

func (s *SocialSign) verifier(ctx context.Context, provider string) (idp.Verifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.verifiers[provider]; ok {
		return v, nil
	}

	var clientID string
	switch {
	case provider == ProviderGoogle && s.config.Google != nil:
		clientID = s.config.Google.ClientID
	case provider == ProviderApple && s.config.Apple != nil:
		clientID = s.config.Apple.ClientID
	default:
		return nil, fmt.Errorf("%s: %w", provider, socialauth.ErrNotConfigured)
	}

	v, err := s.newVerifier(ctx, provider, clientID, s.config.AllowedDomains)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create verifier: %w", provider, err)
	}
	s.verifiers[provider] = v
	return v, nil
}

// Close stops the Apple callback server, if one is running.
func (s *SocialSign) Close(ctx context.Context) error {
	if s.callback == nil {
		return nil
	}
	return s.callback.Stop(ctx)
}
