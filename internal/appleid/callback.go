package appleid

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/sdk"
)

// relayPage forwards a fragment-mode response, which never reaches the
// server, back as a form post.
const relayPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in</title></head>
<body><script>
var p = new URLSearchParams(window.location.hash.slice(1));
if (!p.has("state")) {
  document.body.textContent = "Missing authorization response.";
} else {
  var f = document.createElement("form");
  f.method = "POST";
  f.action = window.location.pathname;
  p.forEach(function (v, k) {
    var i = document.createElement("input");
    i.type = "hidden"; i.name = k; i.value = v;
    f.appendChild(i);
  });
  document.body.appendChild(f);
  f.submit();
}
</script></body></html>`

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.}}</title></head>
<body><h1>{{.}}</h1><p>You can close this window.</p><script>window.close()</script></body></html>`))

func writeResult(w http.ResponseWriter, status int, title string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, title)
}

// CallbackHandler receives authorization responses at the redirect URI.
// It accepts form_post and query responses, and serves the fragment relay
// for a bare GET.
func (c *Client) CallbackHandler() http.Handler {
	return http.HandlerFunc(c.handleCallback)
}

func (c *Client) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Method == http.MethodGet && r.URL.RawQuery == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(relayPage))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed response", http.StatusBadRequest)
		return
	}

	state := r.Form.Get("state")
	res := parseResponse(r)

	if !c.deliver(state, res) {
		log.LogWarnWithFields("appleid", "Callback for unknown state", map[string]any{
			"remote": r.RemoteAddr,
		})
		writeResult(w, http.StatusBadRequest, "This sign-in request has expired")
		return
	}

	switch {
	case res.err != nil:
		writeResult(w, http.StatusOK, "Sign-in failed")
	case res.resp.Authorization.IDToken == "":
		writeResult(w, http.StatusOK, "Sign-in cancelled")
	default:
		writeResult(w, http.StatusOK, "Signed in")
	}
}

func parseResponse(r *http.Request) result {
	if code := r.Form.Get("error"); code != "" {
		log.LogInfoWithFields("appleid", "Authorization returned error", map[string]any{
			"error": code,
		})
		if code == CancelledCode {
			return result{resp: &sdk.AppleSignInResponse{
				Authorization: sdk.AppleAuthorization{State: r.Form.Get("state")},
			}}
		}
		return result{err: &AuthorizationError{Code: code}}
	}

	resp := &sdk.AppleSignInResponse{
		Authorization: sdk.AppleAuthorization{
			Code:    r.Form.Get("code"),
			IDToken: r.Form.Get("id_token"),
			State:   r.Form.Get("state"),
		},
	}

	// Apple only sends user on the first authorization.
	if raw := r.Form.Get("user"); raw != "" {
		var user sdk.AppleUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.LogWarnWithFields("appleid", "Ignoring malformed user payload", map[string]any{
				"error": err.Error(),
			})
		} else {
			resp.User = &user
		}
	}
	return result{resp: resp}
}
