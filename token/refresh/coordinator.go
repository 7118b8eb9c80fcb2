// Package refresh renews the session's credential pair against the backend
// refresh endpoint. The Coordinator is single-flight: however many goroutines
// discover an expired credential at once, exactly one renewal call goes out,
// and every caller shares its outcome.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
)

// SessionStore is the slice of the session store the coordinator needs.
type SessionStore interface {
	Read() session.Session
	Write(session.Session)
	Clear()
}

// Failure records the most recent terminal refresh outcome.
type Failure struct {
	Reason error
	At     time.Time
}

// Coordinator guarantees at most one in-flight renewal at a time. A renewal
// failure is terminal: the session is cleared once and every waiter receives
// the same error. The next EnsureFreshCredentials call after a failure starts
// a fresh renewal.
type Coordinator struct {
	store   SessionStore
	rst     *resty.Client
	log     zerolog.Logger
	nowTime func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	last *Failure
}

// Option defines a function type to modify the Coordinator instance.
type Option func(*Coordinator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithTimeout sets the per-request timeout of the refresh call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.rst.SetTimeout(d)
	}
}

// New creates a Coordinator renewing credentials against baseURL. The
// coordinator talks to the refresh endpoint over its own bare transport: the
// renewal call itself must never recurse into 401 handling.
func New(store SessionStore, baseURL string, options ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		rst: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// EnsureFreshCredentials returns a renewed credential pair. Concurrent
// callers attach to the renewal already in flight instead of starting their
// own; all of them observe the same pair or the same terminal error.
func (c *Coordinator) EnsureFreshCredentials(ctx context.Context) (session.CredentialPair, error) {
	v, err, shared := c.group.Do("refresh", func() (interface{}, error) {
		return c.renew(ctx)
	})
	if err != nil {
		return session.CredentialPair{}, err
	}
	if shared {
		c.log.Debug().Msg("attached to in-flight credential renewal")
	}
	return v.(session.CredentialPair), nil
}

// LastFailure returns the most recent terminal refresh failure, or nil when
// the last renewal succeeded (or none ran yet).
func (c *Coordinator) LastFailure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	f := *c.last
	return &f
}

func (c *Coordinator) renew(ctx context.Context) (session.CredentialPair, error) {
	sess := c.store.Read()
	if !sess.Active() {
		// Nothing to renew with; fail before touching the network.
		return session.CredentialPair{}, c.fail(apperrors.ErrNoRefreshToken, false)
	}

	resp, err := c.rst.R().
		SetContext(ctx).
		SetAuthToken(sess.Credentials.RefreshToken).
		Post(api.PathRefresh)
	if err != nil {
		return session.CredentialPair{}, c.fail(apperrors.Wrapf(apperrors.ErrTransport, "calling refresh endpoint (%s)", err), true)
	}
	if !resp.IsSuccess() {
		reason := errors.Errorf("refresh endpoint returned %d", resp.StatusCode())
		if msg := api.EnvelopeMessage(resp.Body()); msg != "" {
			reason = errors.Errorf("refresh endpoint returned %d: %s", resp.StatusCode(), msg)
		}
		return session.CredentialPair{}, c.fail(reason, true)
	}

	data, err := api.DecodeEnvelope[api.TokenPairResult](resp.Body())
	if err != nil {
		return session.CredentialPair{}, c.fail(err, true)
	}
	pair := session.CredentialPair{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}
	if !pair.Valid() {
		return session.CredentialPair{}, c.fail(apperrors.Wrapf(apperrors.ErrMalformedResponse, "refresh response missing tokens"), true)
	}

	// The renewed pair replaces the credentials; the cached user snapshot
	// rides along untouched.
	c.store.Write(session.Session{Credentials: &pair, User: sess.User})

	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()

	c.log.Debug().Msg("credential pair renewed")
	return pair, nil
}

// fail records the failure, clears the session when one existed, and returns
// the terminal error every waiter will see.
func (c *Coordinator) fail(reason error, clearSession bool) error {
	if clearSession {
		c.store.Clear()
	}
	c.mu.Lock()
	c.last = &Failure{Reason: reason, At: c.nowTime()}
	c.mu.Unlock()

	c.log.Error().Err(reason).Msg("credential refresh failed")
	return fmt.Errorf("%w: %w", apperrors.ErrRefreshTerminal, reason)
}
