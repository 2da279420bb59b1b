package gis

import (
	"github.com/dgellow/socialsign/internal/idp"
	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/sdk"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Installer returns the script installer that turns Google's discovery
// document into a Client under sdk.GoogleGlobal. Endpoints missing from
// the document fall back to Google's well-known ones.
func Installer(opts Options) script.Installer {
	return func(body []byte, doc *script.Document) error {
		d, err := idp.ParseDiscovery(body)
		if err != nil {
			return err
		}

		endpoint := oauth2.Endpoint{
			AuthURL:  d.AuthorizationEndpoint,
			TokenURL: d.TokenEndpoint,
		}
		if endpoint.AuthURL == "" {
			endpoint.AuthURL = google.Endpoint.AuthURL
		}
		if endpoint.TokenURL == "" {
			endpoint.TokenURL = google.Endpoint.TokenURL
		}

		doc.SetGlobal(sdk.GoogleGlobal, New(endpoint, opts))
		return nil
	}
}
