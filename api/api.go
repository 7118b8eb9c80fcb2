// Package api defines the wire contracts of the backend auth API: the
// `{success, message, data}` response envelope and the request/response
// DTOs for the login, federated-login, refresh, current-user, and logout
// endpoints.
package api

import (
	"encoding/json"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Endpoint paths, relative to the configured base URL.
const (
	PathLogin          = "/api/auth/login"
	PathFederatedLogin = "/api/oauth2/login"
	PathCurrentUser    = "/api/auth/me"
	PathRefresh        = "/api/auth/refresh"
	PathLogout         = "/api/auth/logout"
)

// ProviderType identifies a federated identity provider.
type ProviderType string

const (
	ProviderGoogle ProviderType = "GOOGLE"
	ProviderApple  ProviderType = "APPLE"
)

// Valid reports whether the provider type is one the backend accepts.
func (p ProviderType) Valid() bool {
	return p == ProviderGoogle || p == ProviderApple
}

// Envelope is the wrapper the backend puts around every JSON response body.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedLoginRequest is the body of POST /api/oauth2/login. Token is the
// identity token issued by the external provider, exchanged for a backend
// session.
type FederatedLoginRequest struct {
	ProviderType ProviderType `json:"providerType"`
	Token        string       `json:"token"`
}

// LoginResult is the success payload of both login endpoints. User is kept
// opaque; the backend owns its shape.
type LoginResult struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
}

// TokenPairResult is the success payload of POST /api/auth/refresh.
type TokenPairResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// DecodeEnvelope unwraps a response body. An unparsable body, a missing
// envelope, or success=false all classify as a malformed response; the
// backend-provided message is carried in the returned error when present.
func DecodeEnvelope[T any](body []byte) (T, error) {
	var env Envelope[T]
	var zero T
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, apperrors.Wrapf(apperrors.ErrMalformedResponse, "decoding response body")
	}
	if !env.Success {
		if env.Message != "" {
			return zero, apperrors.Wrapf(apperrors.ErrMalformedResponse, "backend reported failure: %s", env.Message)
		}
		return zero, apperrors.Wrapf(apperrors.ErrMalformedResponse, "backend reported failure")
	}
	return env.Data, nil
}

// EnvelopeMessage extracts the backend's message from a (possibly failing)
// response body, best effort. Returns "" when the body is not an envelope.
func EnvelopeMessage(body []byte) string {
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}
