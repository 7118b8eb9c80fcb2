package auth

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/token/refresh"
)

// FromConfig wires the full stack — storage medium, session store, refresh
// coordinator, gateway, facade — from environment configuration. The returned
// stop function ends the cross-process session watch.
func FromConfig(cfg config.Config, log zerolog.Logger, options ...ClientOption) (*Client, func(), error) {
	medium, err := mediumFromConfig(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	store := session.NewStore(medium, session.WithStoreLogger(log))
	stopWatch, err := store.Watch()
	if err != nil {
		return nil, nil, errors.Wrap(err, "starting session watch")
	}

	coordinator := refresh.New(store, cfg.GetBaseURL(),
		refresh.WithLogger(log),
		refresh.WithTimeout(cfg.GetHTTPTimeout()),
	)
	gw := gateway.New(store, coordinator, cfg.GetBaseURL(),
		gateway.WithLogger(log),
		gateway.WithTimeout(cfg.GetHTTPTimeout()),
	)

	client, err := NewClient(store, gw, append([]ClientOption{WithLogger(log)}, options...)...)
	if err != nil {
		stopWatch()
		return nil, nil, err
	}
	return client, stopWatch, nil
}

func mediumFromConfig(cfg config.Config, log zerolog.Logger) (session.Medium, error) {
	switch backend := cfg.GetStorageBackend(); backend {
	case config.StorageFile:
		path := cfg.GetSessionFile()
		if path == "" {
			defaultPath, err := session.DefaultSessionPath(cfg.GetAppName())
			if err != nil {
				return nil, err
			}
			path = defaultPath
		}
		return session.NewFileMedium(path, session.WithFileMediumLogger(log)), nil
	case config.StorageKeyring:
		return session.NewKeyringMedium(cfg.GetAppName(), "session"), nil
	case config.StorageMemory:
		return session.NewMemoryMedium(), nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", backend)
	}
}
