package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/api"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

func TestDecodeEnvelopeSuccess(t *testing.T) {
	body := []byte(`{"success":true,"data":{"accessToken":"AT1","refreshToken":"RT1"}}`)

	data, err := api.DecodeEnvelope[api.TokenPairResult](body)
	require.NoError(t, err)
	require.Equal(t, api.TokenPairResult{AccessToken: "AT1", RefreshToken: "RT1"}, data)
}

func TestDecodeEnvelopeUnwrappedBody(t *testing.T) {
	_, err := api.DecodeEnvelope[api.TokenPairResult]([]byte(`not json at all`))
	require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
}

func TestDecodeEnvelopeBackendFailureCarriesMessage(t *testing.T) {
	body := []byte(`{"success":false,"message":"account locked"}`)

	_, err := api.DecodeEnvelope[api.TokenPairResult](body)
	require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	require.ErrorContains(t, err, "account locked")
}

func TestEnvelopeMessage(t *testing.T) {
	require.Equal(t, "nope", api.EnvelopeMessage([]byte(`{"success":false,"message":"nope"}`)))
	require.Empty(t, api.EnvelopeMessage([]byte(`garbage`)))
}

func TestProviderTypeValid(t *testing.T) {
	require.True(t, api.ProviderGoogle.Valid())
	require.True(t, api.ProviderApple.Valid())
	require.False(t, api.ProviderType("GITHUB").Valid())
}
