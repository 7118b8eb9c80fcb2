// Package auth is the public facade of the client session manager: login,
// federated login, logout, the synchronous current-user accessor, and the
// session-change subscription consumed by UI layers.
package auth

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/session"
)

// Gateway is the outbound pipeline the facade sends every backend call
// through, so each of them benefits from transparent refresh-and-retry.
type Gateway interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// SessionStore is the slice of the session store the facade needs.
type SessionStore interface {
	Read() session.Session
	Write(session.Session)
	Clear()
	Subscribe(fn func(session.Session)) func()
}

// Client orchestrates the session store, gateway, and refresh coordinator
// behind the five public operations of the subsystem.
type Client struct {
	store SessionStore
	gw    Gateway
	log   zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient initializes the facade with its required collaborators.
func NewClient(store SessionStore, gw Gateway, options ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, errors.New("[NewClient] session store is required")
	}
	if gw == nil {
		return nil, errors.New("[NewClient] gateway is required")
	}

	client := &Client{
		store: store,
		gw:    gw,
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Login authenticates with email and password. On success the returned
// credential pair and user snapshot are committed to the store as one write;
// on failure the session is left untouched.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	if email == "" || password == "" {
		return session.Session{}, EmptyCredentialsErr
	}
	return c.establishSession(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   api.PathLogin,
		Body:   api.LoginRequest{Email: email, Password: password},
	})
}

// FederatedLogin exchanges a provider-issued identity token for a backend
// session. The session-write contract is field-for-field the same as Login's.
func (c *Client) FederatedLogin(ctx context.Context, provider api.ProviderType, identityToken string) (session.Session, error) {
	if !provider.Valid() {
		return session.Session{}, InvalidProviderErr
	}
	if identityToken == "" {
		return session.Session{}, EmptyIdentityTokenErr
	}
	return c.establishSession(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   api.PathFederatedLogin,
		Body:   api.FederatedLoginRequest{ProviderType: provider, Token: identityToken},
	})
}

func (c *Client) establishSession(ctx context.Context, req gateway.Request) (session.Session, error) {
	resp, err := c.gw.Do(ctx, req)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "login")
	}
	result, err := api.DecodeEnvelope[api.LoginResult](resp.Body)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "login")
	}
	pair := session.CredentialPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}
	if !pair.Valid() {
		return session.Session{}, errors.New("login response missing token pair")
	}

	sess := session.Session{Credentials: &pair, User: session.UserSnapshot(result.User)}
	c.store.Write(sess)
	c.log.Debug().Str("path", req.Path).Msg("session established")
	return sess, nil
}

// CurrentUser returns the cached user snapshot. It reads only the store; no
// network call is made, and the snapshot may lag the backend until
// RefreshCurrentUser runs.
func (c *Client) CurrentUser() (session.UserSnapshot, bool) {
	sess := c.store.Read()
	if !sess.Active() || len(sess.User) == 0 {
		return nil, false
	}
	return sess.User, true
}

// RefreshCurrentUser fetches the authoritative user record through the
// gateway and replaces the cached snapshot, leaving the credentials as they
// are.
func (c *Client) RefreshCurrentUser(ctx context.Context) (session.UserSnapshot, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: api.PathCurrentUser})
	if err != nil {
		return nil, errors.Wrap(err, "fetching current user")
	}
	user, err := api.DecodeEnvelope[session.UserSnapshot](resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "fetching current user")
	}

	if sess := c.store.Read(); sess.Active() {
		sess.User = user
		c.store.Write(sess)
	}
	return user, nil
}

// Logout tells the backend to end the session, best effort, then
// unconditionally clears the local session. A failing logout call never
// leaves a local session behind.
func (c *Client) Logout(ctx context.Context) {
	if _, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: api.PathLogout}); err != nil {
		c.log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
	}
	c.store.Clear()
}

// OnSessionChange subscribes to session changes, including ones originating
// in other processes. The listener receives the new session value; the
// returned function unsubscribes.
func (c *Client) OnSessionChange(listener func(session.Session)) func() {
	return c.store.Subscribe(listener)
}
