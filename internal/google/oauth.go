package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoClientSecret is returned when the OAuth client secret file is missing.
var ErrNoClientSecret = errors.New("OAuth client secret not found")

// DefaultRedirectURL is used when the client secret declares no redirect
// URI. Google shows the code in the browser address bar after consent.
const DefaultRedirectURL = "http://localhost"

const authState = "inboxtriage"

// LoadConfig reads an OAuth client secret file as downloaded from the Google
// Cloud console.
func LoadConfig(clientSecretPath string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoClientSecret, clientSecretPath)
		}
		return nil, fmt.Errorf("failed to read client secret: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret: %w", err)
	}
	if conf.RedirectURL == "" {
		conf.RedirectURL = DefaultRedirectURL
	}
	return conf, nil
}

// AuthURL returns the consent page URL. Offline access with forced approval
// makes Google return a refresh token every time.
func AuthURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL(authState, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and saves it in store.
func Exchange(ctx context.Context, conf *oauth2.Config, store TokenStore, code string) (*oauth2.Token, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// HTTPClient returns a client that authorizes requests with the token in
// store, refreshing it as needed and writing refreshed tokens back.
//
// The transport is pinned to HTTP/1.1; the Gmail API intermittently resets
// long-lived HTTP/2 connections.
func HTTPClient(ctx context.Context, conf *oauth2.Config, store TokenStore) (*http.Client, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	// The token endpoint is reached through the context client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base, Timeout: 30 * time.Second})

	src := &persistingTokenSource{
		src:   conf.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(tok, src),
			Base:   base,
		},
	}, nil
}

// persistingTokenSource saves every token that differs from the previous one.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	store TokenStore
	last  string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
