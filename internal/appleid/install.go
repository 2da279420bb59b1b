package appleid

import (
	"github.com/dgellow/socialsign/internal/idp"
	"github.com/dgellow/socialsign/internal/script"
	"github.com/dgellow/socialsign/internal/sdk"
)

// Installer returns the script installer that turns Apple's discovery
// document into client under sdk.AppleGlobal. The client is built by the
// caller so the host can mount its CallbackHandler before any sign-in.
func Installer(client *Client) script.Installer {
	return func(body []byte, doc *script.Document) error {
		d, err := idp.ParseDiscovery(body)
		if err != nil {
			return err
		}
		if d.AuthorizationEndpoint != "" {
			client.mu.Lock()
			client.authorizeURL = d.AuthorizationEndpoint
			client.mu.Unlock()
		}
		doc.SetGlobal(sdk.AppleGlobal, client)
		return nil
	}
}
