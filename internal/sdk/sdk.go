// Package sdk describes the provider SDK objects that provider scripts
// install into a document, and where to find them.
package sdk

import "context"

// Script identifiers and the globals their execution installs.
const (
	GoogleScriptID = "google-gsi"
	GoogleGlobal   = "google.accounts.id"

	AppleScriptID = "apple-signin"
	AppleGlobal   = "AppleID.auth"
)

// Default script sources. Each is the provider's OpenID discovery document.
const (
	GoogleScriptURL = "https://accounts.google.com/.well-known/openid-configuration"
	AppleScriptURL  = "https://appleid.apple.com/.well-known/openid-configuration"
)

// Globals looks up installed SDK objects by name.
type Globals interface {
	Global(name string) (any, bool)
}

// LookupGoogle returns the Google Identity Services object, if installed.
func LookupGoogle(g Globals) (GoogleID, bool) {
	v, ok := g.Global(GoogleGlobal)
	if !ok || v == nil {
		return nil, false
	}
	id, ok := v.(GoogleID)
	return id, ok
}

// LookupApple returns the Sign in with Apple auth object, if installed.
func LookupApple(g Globals) (AppleIDAuth, bool) {
	v, ok := g.Global(AppleGlobal)
	if !ok || v == nil {
		return nil, false
	}
	auth, ok := v.(AppleIDAuth)
	return auth, ok
}

// UXModePopup opens the provider's sign-in in a separate window.
const UXModePopup = "popup"

// CredentialResponse is delivered to GoogleIDConfig.Callback.
// Credential is the identity token; it is empty when the user backed out.
type CredentialResponse struct {
	Credential string
	SelectBy   string
}

// GoogleIDConfig configures GoogleID.Initialize.
type GoogleIDConfig struct {
	ClientID           string
	UXMode             string
	AutoSelect         bool
	CancelOnTapOutside bool
	Callback           func(CredentialResponse)
}

// PromptNotification reports prompt UI status to a Prompt listener.
type PromptNotification struct {
	NotDisplayed bool
	Skipped      bool
	Displayed    bool
	// Reason is the provider's reason code for a not-displayed or skipped moment.
	Reason string
}

func (n PromptNotification) IsNotDisplayed() bool { return n.NotDisplayed }
func (n PromptNotification) IsSkippedMoment() bool { return n.Skipped }
func (n PromptNotification) IsDisplayed() bool { return n.Displayed }

// Not-displayed and skipped reason codes.
const (
	ReasonBrowserNotSupported = "browser_not_supported"
	ReasonUnknown             = "unknown_reason"
	ReasonIssuingFailed       = "issuing_failed"
	ReasonAutoCancel          = "auto_cancel"
	ReasonUserCancel          = "user_cancel"
)

// GoogleID is the google.accounts.id surface used for sign-in.
type GoogleID interface {
	Initialize(cfg GoogleIDConfig) error
	// Prompt starts the interactive sign-in and returns without waiting for it.
	Prompt(listener func(PromptNotification)) error
	// Cancel asks the provider to dismiss an in-flight prompt.
	Cancel() error
}

// AppleIDConfig configures AppleIDAuth.Init.
type AppleIDConfig struct {
	ClientID     string
	Scope        string
	RedirectURI  string
	State        string
	Nonce        string
	UsePopup     bool
	ResponseType string
	ResponseMode string
}

// AppleAuthorization carries the authorization result.
type AppleAuthorization struct {
	Code    string `json:"code"`
	IDToken string `json:"id_token"`
	State   string `json:"state"`
}

// AppleUserName is the name Apple shares on first sign-in.
type AppleUserName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AppleUser is only present the first time a user authorizes the app.
type AppleUser struct {
	Email string        `json:"email"`
	Name  AppleUserName `json:"name"`
}

// AppleSignInResponse is the result of AppleIDAuth.SignIn.
type AppleSignInResponse struct {
	Authorization AppleAuthorization `json:"authorization"`
	User          *AppleUser         `json:"user,omitempty"`
}

// AppleIDAuth is the AppleID.auth surface used for sign-in.
type AppleIDAuth interface {
	Init(cfg AppleIDConfig) error
	SignIn(ctx context.Context) (*AppleSignInResponse, error)
}
