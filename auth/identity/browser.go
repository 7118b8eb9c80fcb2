package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const stateLength = 32

// BrowserProvider obtains an identity token through the provider's
// authorization-code flow: it listens on a loopback address, sends the user
// to the provider's consent page, exchanges the returned code, and verifies
// the id_token against the provider's keys before handing it over.
type BrowserProvider struct {
	providerType api.ProviderType
	issuer       string
	clientID     string
	clientSecret string
	listenAddr   string
	openURL      func(url string) error
	log          zerolog.Logger
}

var _ Provider = (*BrowserProvider)(nil)

// BrowserOption defines a function type to modify the BrowserProvider instance.
type BrowserOption func(*BrowserProvider)

// WithOpenURL sets how the consent URL is presented to the user. The default
// prints it for the user to open themselves.
func WithOpenURL(open func(url string) error) BrowserOption {
	return func(p *BrowserProvider) {
		p.openURL = open
	}
}

// WithBrowserLogger sets the provider's logger.
func WithBrowserLogger(log zerolog.Logger) BrowserOption {
	return func(p *BrowserProvider) {
		p.log = log
	}
}

// NewBrowserProvider creates a browser-flow provider for the given issuer
// (e.g. "https://accounts.google.com").
func NewBrowserProvider(providerType api.ProviderType, issuer, clientID, clientSecret, listenAddr string, options ...BrowserOption) *BrowserProvider {
	p := &BrowserProvider{
		providerType: providerType,
		issuer:       issuer,
		clientID:     clientID,
		clientSecret: clientSecret,
		listenAddr:   listenAddr,
		log:          zerolog.Nop(),
	}
	p.openURL = func(url string) error {
		fmt.Printf("Open the following URL to continue signing in:\n\n  %s\n\n", url)
		return nil
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *BrowserProvider) Type() api.ProviderType {
	return p.providerType
}

// Fetch runs the flow. Context cancellation while waiting for the user maps
// to ErrCancelled; failure to present the flow maps to ErrNotDisplayed; any
// provider-side failure maps to ErrProvider.
func (p *BrowserProvider) Fetch(ctx context.Context) (string, error) {
	provider, err := oidc.NewProvider(ctx, p.issuer)
	if err != nil {
		return "", apperrors.Wrapf(ErrProvider, "discovering issuer %s (%s)", p.issuer, err)
	}

	listener, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return "", apperrors.Wrapf(ErrNotDisplayed, "listening on %s (%s)", p.listenAddr, err)
	}

	conf := oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  fmt.Sprintf("http://%s/callback", listener.Addr().String()),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	state, err := generateState()
	if err != nil {
		listener.Close() //nolint:errcheck
		return "", apperrors.Wrapf(ErrProvider, "generating state")
	}

	code, err := p.waitForCallback(ctx, listener, state, conf.AuthCodeURL(state))
	if err != nil {
		return "", err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", apperrors.Wrapf(ErrProvider, "exchanging authorization code (%s)", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", apperrors.Wrapf(ErrProvider, "token response carried no id_token")
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: p.clientID})
	if _, err := verifier.Verify(ctx, rawIDToken); err != nil {
		return "", apperrors.Wrapf(ErrProvider, "verifying id_token (%s)", err)
	}

	return rawIDToken, nil
}

// waitForCallback serves the loopback redirect endpoint until the provider
// delivers a code, the user's flow errors, or the context ends.
func (p *BrowserProvider) waitForCallback(ctx context.Context, listener net.Listener, state, authURL string) (string, error) {
	type outcome struct {
		code string
		err  error
	}
	results := make(chan outcome, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- outcome{err: apperrors.Wrapf(ErrProvider, "state mismatch on callback")}
		case query.Get("error") != "":
			fmt.Fprintln(w, "Sign-in was not completed. You can close this window.")
			results <- outcome{err: apperrors.Wrapf(ErrCancelled, "provider reported %q", query.Get("error"))}
		case query.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- outcome{err: apperrors.Wrapf(ErrProvider, "callback carried no code")}
		default:
			fmt.Fprintln(w, "Signed in. You can close this window.")
			results <- outcome{code: query.Get("code")}
		}
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener) //nolint:errcheck
	defer server.Close()      //nolint:errcheck

	if err := p.openURL(authURL); err != nil {
		return "", apperrors.Wrapf(ErrNotDisplayed, "presenting consent URL (%s)", err)
	}
	p.log.Debug().Str("issuer", p.issuer).Msg("waiting for identity provider callback")

	select {
	case <-ctx.Done():
		return "", apperrors.Wrapf(ErrCancelled, "identity flow abandoned (%s)", ctx.Err())
	case res := <-results:
		return res.code, res.err
	}
}

func generateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
