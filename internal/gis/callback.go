package gis

import (
	"context"
	"crypto/subtle"
	"html/template"
	"net/http"

	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/sdk"
	"golang.org/x/oauth2"
)

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p><script>window.close()</script></body></html>`))

func writeResult(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, struct{ Title, Message string }{title, message})
}

func (p *prompt) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(p.state)) != 1 {
		log.LogWarnWithFields("gis", "Callback with unexpected state", map[string]any{
			"remote": r.RemoteAddr,
		})
		writeResult(w, http.StatusBadRequest, "Sign-in failed", "This sign-in link is no longer valid.")
		return
	}

	if errCode := q.Get("error"); errCode != "" {
		log.LogInfoWithFields("gis", "Consent declined", map[string]any{
			"error": errCode,
		})
		writeResult(w, http.StatusOK, "Sign-in cancelled", "You can close this window.")
		p.finish(func() { p.callback(sdk.CredentialResponse{}) })
		return
	}

	code := q.Get("code")
	if code == "" {
		writeResult(w, http.StatusBadRequest, "Sign-in failed", "The response did not include an authorization code.")
		return
	}

	ctx := r.Context()
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		log.LogErrorWithFields("gis", "Code exchange failed", map[string]any{
			"error": err.Error(),
		})
		writeResult(w, http.StatusBadGateway, "Sign-in failed", "Google did not issue a token.")
		p.finish(func() {
			p.listener(sdk.PromptNotification{Skipped: true, Reason: sdk.ReasonIssuingFailed})
		})
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		log.LogErrorWithFields("gis", "Token response has no id_token", map[string]any{
			"scopes": p.oauth.Scopes,
		})
		writeResult(w, http.StatusBadGateway, "Sign-in failed", "Google did not issue an identity token.")
		p.finish(func() {
			p.listener(sdk.PromptNotification{Skipped: true, Reason: sdk.ReasonIssuingFailed})
		})
		return
	}

	writeResult(w, http.StatusOK, "Signed in", "You can close this window.")
	p.finish(func() { p.callback(sdk.CredentialResponse{Credential: idToken, SelectBy: "btn"}) })
}
