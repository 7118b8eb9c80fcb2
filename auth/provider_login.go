package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/auth/identity"
	"github.com/jrsteele09/go-auth-client/session"
)

// LoginWithProvider runs the full federated flow: acquire an identity token
// from the provider capability, then exchange it for a backend session. A
// classified provider failure (cancelled, not displayed, provider error)
// surfaces unchanged and leaves the session untouched.
func (c *Client) LoginWithProvider(ctx context.Context, provider identity.Provider) (session.Session, error) {
	token, err := provider.Fetch(ctx)
	if err != nil {
		return session.Session{}, errors.Wrapf(err, "acquiring %s identity token", provider.Type())
	}
	return c.FederatedLogin(ctx, provider.Type(), token)
}
