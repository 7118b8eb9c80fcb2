// Package identity abstracts the external identity-provider SDKs behind a
// single asynchronous capability: given provider configuration, fetch a
// signed identity token or report a classified failure. How a provider gets
// the token (browser flow, cached grant, hardware token) is its own business.
package identity

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-auth-client/api"
)

// Classified provider failure reasons. The facade maps any of them to a
// federated-login failure with no session mutation.
var (
	// ErrCancelled: the user dismissed or abandoned the flow.
	ErrCancelled = errors.New("identity flow cancelled")
	// ErrNotDisplayed: the flow could not be presented at all.
	ErrNotDisplayed = errors.New("identity flow could not be displayed")
	// ErrProvider: the provider SDK or endpoint reported an error.
	ErrProvider = errors.New("identity provider error")
)

// Provider yields a provider-signed identity token for the user.
type Provider interface {
	Type() api.ProviderType
	Fetch(ctx context.Context) (string, error)
}

// StaticProvider wraps an identity token obtained elsewhere (scripting,
// tests, a token passed in on the command line).
type StaticProvider struct {
	providerType api.ProviderType
	token        string
}

var _ Provider = StaticProvider{}

func NewStaticProvider(providerType api.ProviderType, token string) StaticProvider {
	return StaticProvider{providerType: providerType, token: token}
}

func (p StaticProvider) Type() api.ProviderType {
	return p.providerType
}

func (p StaticProvider) Fetch(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", ErrProvider
	}
	return p.token, nil
}
