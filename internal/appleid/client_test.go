package appleid

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/socialsign/internal/browser"
	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(redirectURI string) sdk.AppleIDConfig {
	return sdk.AppleIDConfig{
		ClientID:     "com.example.web",
		Scope:        "name email",
		RedirectURI:  redirectURI,
		State:        "state-123",
		Nonce:        "nonce-456",
		UsePopup:     true,
		ResponseType: "code id_token",
		ResponseMode: "fragment",
	}
}

// postingOpener plays Apple: it answers the authorize URL by posting the
// response to the redirect URI.
type postingOpener struct {
	form   func(authURL *url.URL) url.Values
	mu     sync.Mutex
	opened *url.URL
	status chan int
}

func newPostingOpener(form func(*url.URL) url.Values) *postingOpener {
	return &postingOpener{form: form, status: make(chan int, 1)}
}

func (o *postingOpener) Open(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.opened = u
	o.mu.Unlock()

	if o.form == nil {
		return nil
	}
	go func() {
		resp, err := http.PostForm(u.Query().Get("redirect_uri"), o.form(u))
		if err != nil {
			o.status <- 0
			return
		}
		resp.Body.Close()
		o.status <- resp.StatusCode
	}()
	return nil
}

func (o *postingOpener) url() *url.URL {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

func newCallbackServer(t *testing.T, c *Client) *httptest.Server {
	srv := httptest.NewServer(c.CallbackHandler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSignIn_Success(t *testing.T) {
	opener := newPostingOpener(func(u *url.URL) url.Values {
		return url.Values{
			"state":    {u.Query().Get("state")},
			"code":     {"c0de"},
			"id_token": {"eyJ.apple.idtoken"},
			"user":     {`{"name":{"firstName":"Ada","lastName":"Lovelace"},"email":"ada@example.com"}`},
		}
	})
	c := New("https://appleid.example/auth/authorize", Options{Opener: opener})
	srv := newCallbackServer(t, c)

	require.NoError(t, c.Init(testConfig(srv.URL+"/callback")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.SignIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eyJ.apple.idtoken", resp.Authorization.IDToken)
	assert.Equal(t, "c0de", resp.Authorization.Code)
	assert.Equal(t, "state-123", resp.Authorization.State)
	require.NotNil(t, resp.User)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, "Ada", resp.User.Name.FirstName)
	assert.Equal(t, http.StatusOK, <-opener.status)

	q := opener.url().Query()
	assert.Equal(t, "com.example.web", q.Get("client_id"))
	assert.Equal(t, "code id_token", q.Get("response_type"))
	assert.Equal(t, "fragment", q.Get("response_mode"))
	assert.Equal(t, "name email", q.Get("scope"))
	assert.Equal(t, "nonce-456", q.Get("nonce"))
}

func TestSignIn_UserCancelled(t *testing.T) {
	opener := newPostingOpener(func(u *url.URL) url.Values {
		return url.Values{"state": {u.Query().Get("state")}, "error": {CancelledCode}}
	})
	c := New("", Options{Opener: opener})
	srv := newCallbackServer(t, c)
	require.NoError(t, c.Init(testConfig(srv.URL)))

	resp, err := c.SignIn(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp.Authorization.IDToken)
	assert.Nil(t, resp.User)
}

func TestSignIn_AuthorizationError(t *testing.T) {
	opener := newPostingOpener(func(u *url.URL) url.Values {
		return url.Values{"state": {u.Query().Get("state")}, "error": {"invalid_request"}}
	})
	c := New("", Options{Opener: opener})
	srv := newCallbackServer(t, c)
	require.NoError(t, c.Init(testConfig(srv.URL)))

	_, err := c.SignIn(context.Background())
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_request", authErr.Code)
}

func TestSignIn_MalformedUserIgnored(t *testing.T) {
	opener := newPostingOpener(func(u *url.URL) url.Values {
		return url.Values{
			"state":    {u.Query().Get("state")},
			"id_token": {"tok"},
			"user":     {"{not json"},
		}
	})
	c := New("", Options{Opener: opener})
	srv := newCallbackServer(t, c)
	require.NoError(t, c.Init(testConfig(srv.URL)))

	resp, err := c.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Authorization.IDToken)
	assert.Nil(t, resp.User)
}

func TestSignIn_ContextEnds(t *testing.T) {
	c := New("", Options{Opener: newPostingOpener(nil)})
	require.NoError(t, c.Init(testConfig("https://app.example/callback")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.SignIn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.pending)
}

func TestSignIn_OpenerFails(t *testing.T) {
	failing := browser.OpenerFunc(func(string) error { return errors.New("no display") })
	c := New("", Options{Opener: failing})
	require.NoError(t, c.Init(testConfig("https://app.example/callback")))

	_, err := c.SignIn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
}

func TestSignIn_BeforeInit(t *testing.T) {
	c := New("", Options{Opener: newPostingOpener(nil)})
	_, err := c.SignIn(context.Background())
	assert.Error(t, err)
}

func TestInit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sdk.AppleIDConfig)
		errMsg string
	}{
		{"missing client id", func(c *sdk.AppleIDConfig) { c.ClientID = "" }, "clientId"},
		{"missing redirect", func(c *sdk.AppleIDConfig) { c.RedirectURI = "" }, "redirectURI"},
		{"missing state", func(c *sdk.AppleIDConfig) { c.State = "" }, "state"},
		{"missing nonce", func(c *sdk.AppleIDConfig) { c.Nonce = "" }, "nonce"},
		{"no code", func(c *sdk.AppleIDConfig) { c.ResponseType = "id_token" }, "responseType"},
		{"bad mode", func(c *sdk.AppleIDConfig) { c.ResponseMode = "web_message" }, "responseMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://app.example/callback")
			tt.mutate(&cfg)
			err := New("", Options{}).Init(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAuthorizationURL_ScopeEncoding(t *testing.T) {
	c := New("https://appleid.example/auth/authorize", Options{})
	raw, err := c.AuthorizationURL(testConfig("https://app.example/callback"))
	require.NoError(t, err)
	assert.Contains(t, raw, "scope=name%20email")
	assert.NotContains(t, raw, "+")
	assert.True(t, strings.HasPrefix(raw, "https://appleid.example/auth/authorize?"))
}

func TestCallback_FragmentRelay(t *testing.T) {
	srv := newCallbackServer(t, New("", Options{}))

	resp, err := http.Get(srv.URL + "/callback")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "location.hash")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestCallback_UnknownState(t *testing.T) {
	srv := newCallbackServer(t, New("", Options{}))

	resp, err := http.PostForm(srv.URL, url.Values{"state": {"nope"}, "id_token": {"tok"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallback_QueryMode(t *testing.T) {
	c := New("", Options{Opener: newPostingOpener(nil)})
	srv := newCallbackServer(t, c)
	cfg := testConfig(srv.URL)
	cfg.ResponseMode = "query"
	require.NoError(t, c.Init(cfg))

	type outcome struct {
		resp *sdk.AppleSignInResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.SignIn(context.Background())
		done <- outcome{resp, err}
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.pending) == 1
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "?state=state-123&code=qc&id_token=qtok")
	require.NoError(t, err)
	resp.Body.Close()

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "qtok", got.resp.Authorization.IDToken)
}

func TestCallback_MethodNotAllowed(t *testing.T) {
	srv := newCallbackServer(t, New("", Options{}))

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestInstaller(t *testing.T) {
	c := New("", Options{})
	doc := script.NewDocument()

	err := Installer(c)([]byte(`{"issuer":"https://appleid.apple.com","authorization_endpoint":"https://appleid.example/authorize"}`), doc)
	require.NoError(t, err)

	got, ok := sdk.LookupApple(doc)
	require.True(t, ok)
	assert.Same(t, c, got)

	raw, err := c.AuthorizationURL(testConfig("https://app.example/callback"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "https://appleid.example/authorize?"))

	assert.Error(t, Installer(c)([]byte(`{}`), script.NewDocument()))
}
