// Package gateway is the outbound request pipeline to the backend auth API.
// It attaches the bearer credential from the session store, classifies
// failures, and on a 401 runs exactly one renew-and-resend cycle per logical
// request.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
)

// CredentialSource is the read side of the session store.
type CredentialSource interface {
	Read() session.Session
}

// Refresher renews the credential pair; its single-flight guarantee is what
// keeps N concurrent 401s from issuing N renewal calls.
type Refresher interface {
	EnsureFreshCredentials(ctx context.Context) (session.CredentialPair, error)
}

// Request describes one logical outbound call. Body (when non-nil) is
// serialized as JSON.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Response is a passed-through 2xx result.
type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is a non-2xx backend response that is not refresh-recoverable.
// Message carries the backend envelope's message when one was present.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Code)
}

// Gateway wraps every outbound call to the backend. It never mutates the
// session store itself; session changes happen only inside the Refresher.
type Gateway struct {
	store     CredentialSource
	refresher Refresher
	rst       *resty.Client
	log       zerolog.Logger
	nowTime   func() time.Time
}

// Option defines a function type to modify the Gateway instance.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// WithTimeout sets the fixed per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.rst.SetTimeout(d)
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gateway) {
		g.nowTime = nowFunc
	}
}

// New creates a Gateway for the backend at baseURL. refresher may be nil, in
// which case 401s are never refresh-recovered. The gateway's own retry is the
// only one: resty's transport-level retry stays disabled.
func New(store CredentialSource, refresher Refresher, baseURL string, options ...Option) *Gateway {
	g := &Gateway{
		store:     store,
		refresher: refresher,
		rst: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Do executes one logical request. A session in the store attaches its access
// token as a bearer credential; without one the request goes out
// unauthenticated. On a 401 with a refresh token available, the credential is
// renewed once and the request resent once; a second 401 for the same logical
// request propagates without another renewal.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	sess := g.store.Read()

	token := ""
	canRefresh := false
	if sess.Active() {
		token = sess.Credentials.AccessToken
		canRefresh = g.refresher != nil

		// An access token whose exp claim already passed is a guaranteed 401;
		// renew before spending the round trip. The 401 path below stays the
		// authoritative recovery mechanism.
		if canRefresh && g.tokenExpired(token) {
			if pair, err := g.refresher.EnsureFreshCredentials(ctx); err == nil {
				token = pair.AccessToken
			} else {
				g.log.Debug().Str("request_id", requestID).Err(err).Msg("proactive renewal failed, sending with stored token")
			}
		}
	}

	resp, err := g.send(ctx, req, token, requestID)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTransport, "%s %s (%s)", req.Method, req.Path, err)
	}

	if resp.StatusCode() == 401 && canRefresh {
		// Single-shot retry: this logical request renews at most once.
		g.log.Debug().Str("request_id", requestID).Msg("credential rejected, renewing")
		pair, rerr := g.refresher.EnsureFreshCredentials(ctx)
		if rerr != nil {
			// Terminal: the refresher already cleared the session.
			return nil, rerr
		}
		resp, err = g.send(ctx, req, pair.AccessToken, requestID)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrTransport, "%s %s retry (%s)", req.Method, req.Path, err)
		}
		if resp.StatusCode() == 401 {
			return nil, apperrors.Wrapf(apperrors.ErrCredentialExpired, "%s %s rejected renewed credential", req.Method, req.Path)
		}
	}

	return classify(resp)
}

func (g *Gateway) send(ctx context.Context, req Request, token, requestID string) (*resty.Response, error) {
	r := g.rst.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if token != "" {
		r.SetAuthToken(token)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	return r.Execute(req.Method, req.Path)
}

// tokenExpired peeks at the unverified exp claim. Opaque or claimless tokens
// report false; the backend remains the authority on validity.
func (g *Gateway) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(g.nowTime())
}

func classify(resp *resty.Response) (*Response, error) {
	if resp.IsSuccess() {
		return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
	}
	return nil, &StatusError{Code: resp.StatusCode(), Message: api.EnvelopeMessage(resp.Body())}
}
