package config

type Config interface {
	EnvConfig
	HTTPConfig
	StorageConfig
	ProviderConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	HTTP
	Storage
	Providers
}

func New() Config {
	return mainConfig{}
}
