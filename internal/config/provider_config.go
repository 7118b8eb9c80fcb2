package config

type ProviderConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetAppleClientID() string
	GetRedirectAddr() string
}

type Providers struct{}

var _ ProviderConfig = Providers{}

func (Providers) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Providers) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Providers) GetAppleClientID() string {
	return GetEnv("APPLE_CLIENT_ID", "")
}

// GetRedirectAddr returns the loopback address the identity flow listens on
// for the provider redirect.
func (Providers) GetRedirectAddr() string {
	return GetEnv("OAUTH_REDIRECT_ADDR", "127.0.0.1:8765")
}
