package auth_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/identity"
	"github.com/jrsteele09/go-auth-client/gateway"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/session/mediumfakes"
	"github.com/jrsteele09/go-auth-client/token/refresh"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret"
)

// testFixture holds the full client stack over a stub backend.
type testFixture struct {
	t      *testing.T
	server *httptest.Server
	store  *session.Store
	client *auth.Client

	mu             sync.Mutex
	loginBody      string
	oauthBody      string
	meCalls        atomic.Int32
	meStatus       int
	mePayload      string
	meRequireToken string
	refreshOK      bool
	logoutFail     bool
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		t:         t,
		meStatus:  http.StatusOK,
		mePayload: `{"success":true,"data":{"id":1,"email":"a@b.com"}}`,
		refreshOK: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.loginBody = string(body)
		f.mu.Unlock()
		fmt.Fprint(w, `{"success":true,"data":{"accessToken":"AT1","refreshToken":"RT1","user":{"id":1}}}`)
	})
	mux.HandleFunc("/api/oauth2/login", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.oauthBody = string(body)
		f.mu.Unlock()
		fmt.Fprint(w, `{"success":true,"data":{"accessToken":"AT1","refreshToken":"RT1","user":{"id":1}}}`)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		f.meCalls.Add(1)
		f.mu.Lock()
		status, payload, requireToken := f.meStatus, f.mePayload, f.meRequireToken
		f.mu.Unlock()
		if requireToken != "" && r.Header.Get("Authorization") != "Bearer "+requireToken {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"success":false,"message":"unauthorized"}`)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, payload)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := f.refreshOK
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"success":false,"message":"refresh token expired"}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":{"accessToken":"AT2","refreshToken":"RT1"}}`)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		fail := f.logoutFail
		f.mu.Unlock()
		if fail {
			// Drop the connection mid-response to simulate a network error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close() //nolint:errcheck
			return
		}
		fmt.Fprint(w, `{"success":true,"data":null}`)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.store = session.NewStore(mediumfakes.NewFakeMedium())
	coordinator := refresh.New(f.store, f.server.URL)
	gw := gateway.New(f.store, coordinator, f.server.URL, gateway.WithTimeout(2*time.Second))

	client, err := auth.NewClient(f.store, gw)
	require.NoError(t, err)
	f.client = client
	return f
}

func TestNewClientRequiresCollaborators(t *testing.T) {
	f := setupTestFixture(t)

	_, err := auth.NewClient(nil, nil)
	require.Error(t, err)

	_, err = auth.NewClient(f.store, nil)
	require.Error(t, err)
}

func TestLoginEstablishesSession(t *testing.T) {
	f := setupTestFixture(t)

	sess, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, sess.Active())

	f.mu.Lock()
	require.JSONEq(t, `{"email":"a@b.com","password":"secret"}`, f.loginBody)
	f.mu.Unlock()

	stored := f.store.Read()
	require.Equal(t, &session.CredentialPair{AccessToken: "AT1", RefreshToken: "RT1"}, stored.Credentials)
	require.JSONEq(t, `{"id":1}`, string(stored.User))
}

func TestLoginValidatesInput(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Login(context.Background(), "", testPassword)
	require.ErrorIs(t, err, auth.EmptyCredentialsErr)

	_, err = f.client.Login(context.Background(), testEmail, "")
	require.ErrorIs(t, err, auth.EmptyCredentialsErr)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"invalid credentials"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := session.NewStore(mediumfakes.NewFakeMedium())
	gw := gateway.New(store, nil, server.URL)
	client, err := auth.NewClient(store, gw)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), testEmail, "wrong")
	require.ErrorContains(t, err, "invalid credentials")
	require.False(t, store.Read().Active())
}

// Federated login must write a session field-for-field identical to local
// login's.
func TestFederatedLoginMatchesLocalLoginContract(t *testing.T) {
	local := setupTestFixture(t)
	_, err := local.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	localSession := local.store.Read()

	federated := setupTestFixture(t)
	_, err = federated.client.FederatedLogin(context.Background(), api.ProviderGoogle, "google-id-token")
	require.NoError(t, err)
	federatedSession := federated.store.Read()

	federated.mu.Lock()
	require.JSONEq(t, `{"providerType":"GOOGLE","token":"google-id-token"}`, federated.oauthBody)
	federated.mu.Unlock()

	require.Equal(t, localSession.Credentials, federatedSession.Credentials)
	require.True(t, localSession.User.Equal(federatedSession.User))
}

func TestFederatedLoginValidatesInput(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.FederatedLogin(context.Background(), "GITHUB", "token")
	require.ErrorIs(t, err, auth.InvalidProviderErr)

	_, err = f.client.FederatedLogin(context.Background(), api.ProviderApple, "")
	require.ErrorIs(t, err, auth.EmptyIdentityTokenErr)
}

func TestCurrentUserReadsWithoutNetwork(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	user, ok := f.client.CurrentUser()
	require.True(t, ok)
	require.JSONEq(t, `{"id":1}`, string(user))
	require.Equal(t, int32(0), f.meCalls.Load(), "current user is a store read, not a call")
}

func TestCurrentUserWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	_, ok := f.client.CurrentUser()
	require.False(t, ok)
}

func TestRefreshCurrentUserUpdatesSnapshot(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	user, err := f.client.RefreshCurrentUser(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"email":"a@b.com"}`, string(user))

	stored := f.store.Read()
	require.JSONEq(t, `{"id":1,"email":"a@b.com"}`, string(stored.User))
	require.Equal(t, "AT1", stored.Credentials.AccessToken, "credentials untouched by a snapshot refresh")
}

// The refresh call itself failing is terminal: the session is cleared, the
// caller of the original operation receives the refresh failure, and the
// current user reads as logged out.
func TestTerminalRefreshClearsSessionAndSurfaces(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.mu.Lock()
	f.meStatus = http.StatusUnauthorized
	f.mePayload = `{"success":false,"message":"unauthorized"}`
	f.refreshOK = false
	f.mu.Unlock()

	_, err = f.client.RefreshCurrentUser(context.Background())
	require.ErrorIs(t, err, apperrors.ErrRefreshTerminal)
	require.ErrorContains(t, err, "refresh token expired")

	require.False(t, f.store.Read().Active())
	_, ok := f.client.CurrentUser()
	require.False(t, ok)
}

// A 401 on an authenticated call is repaired transparently: the snapshot
// refresh succeeds on the resend and the store ends up holding the renewed
// access token.
func TestExpiredCredentialRepairedMidRequest(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	// The backend now only accepts the renewed token: the stored AT1 plays
	// the part of an expired credential.
	f.mu.Lock()
	f.meRequireToken = "AT2"
	f.mu.Unlock()

	user, err := f.client.RefreshCurrentUser(context.Background())
	require.NoError(t, err, "the 401 is repaired by one renew-and-resend cycle")
	require.JSONEq(t, `{"id":1,"email":"a@b.com"}`, string(user))

	require.Equal(t, int32(2), f.meCalls.Load(), "original call plus exactly one resend")
	require.Equal(t, "AT2", f.store.Read().Credentials.AccessToken)
}

func TestLogoutClearsSessionEvenWhenBackendFails(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.mu.Lock()
	f.logoutFail = true
	f.mu.Unlock()

	f.client.Logout(context.Background())

	require.False(t, f.store.Read().Active(), "logout must never leave a local session behind")
	_, ok := f.client.CurrentUser()
	require.False(t, ok)
}

func TestLoginWithProviderExchangesFetchedToken(t *testing.T) {
	f := setupTestFixture(t)

	provider := identity.NewStaticProvider(api.ProviderGoogle, "fetched-id-token")
	sess, err := f.client.LoginWithProvider(context.Background(), provider)
	require.NoError(t, err)
	require.True(t, sess.Active())

	f.mu.Lock()
	require.JSONEq(t, `{"providerType":"GOOGLE","token":"fetched-id-token"}`, f.oauthBody)
	f.mu.Unlock()
}

type cancellingProvider struct{}

func (cancellingProvider) Type() api.ProviderType { return api.ProviderGoogle }
func (cancellingProvider) Fetch(context.Context) (string, error) {
	return "", identity.ErrCancelled
}

func TestLoginWithProviderFailureLeavesSessionUntouched(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.LoginWithProvider(context.Background(), cancellingProvider{})
	require.ErrorIs(t, err, identity.ErrCancelled)
	require.False(t, f.store.Read().Active())
}

func TestOnSessionChangeObservesLoginAndLogout(t *testing.T) {
	f := setupTestFixture(t)

	var mu sync.Mutex
	var states []bool
	unsubscribe := f.client.OnSessionChange(func(sess session.Session) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, sess.Active())
	})
	defer unsubscribe()

	_, err := f.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	f.client.Logout(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, states)
}
